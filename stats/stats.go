package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Sizer reports the membership of a peer pool.
type Sizer interface {
	Size() int
	Available() int
}

// Data describes one proxied request.
type Data struct {
	Peer       string
	StatusCode string
	Method     string
	InBytes    uint64
	OutBytes   uint64
}

type peerStats struct {
	StatusCode map[string]uint64
	Method     map[string]uint64
	InBytes    uint64
	OutBytes   uint64
}

// Stats accumulates per-peer request counters of one virtual server. It
// implements prometheus.Collector.
type Stats struct {
	sync.RWMutex
	name  string
	pool  Sizer
	peers map[string]*peerStats

	requestsDesc      *prometheus.Desc
	receivedBytesDesc *prometheus.Desc
	sentBytesDesc     *prometheus.Desc
	poolPeersDesc     *prometheus.Desc
}

// New returns a Stats object for the virtual server name. pool may be nil.
//
// The descriptors carry the virtual server name as a constant label, so the
// Stats of several virtual servers can share one registry.
func New(name string, pool Sizer) *Stats {
	labels := prometheus.Labels{"vserver": name}
	return &Stats{
		name:  name,
		pool:  pool,
		peers: map[string]*peerStats{},

		requestsDesc: prometheus.NewDesc(
			"hrwlb_requests_total",
			"Requests proxied to a peer, by response status code.",
			[]string{"peer", "code"}, labels),
		receivedBytesDesc: prometheus.NewDesc(
			"hrwlb_received_bytes_total",
			"Request body bytes forwarded to a peer.",
			[]string{"peer"}, labels),
		sentBytesDesc: prometheus.NewDesc(
			"hrwlb_sent_bytes_total",
			"Response bytes relayed from a peer.",
			[]string{"peer"}, labels),
		poolPeersDesc: prometheus.NewDesc(
			"hrwlb_pool_peers",
			"Peers in the pool of a virtual server.",
			[]string{"state"}, labels),
	}
}

// Inc records a request.
func (s *Stats) Inc(d *Data) {
	s.Lock()
	defer s.Unlock()

	ps, ok := s.peers[d.Peer]
	if !ok {
		ps = &peerStats{
			StatusCode: map[string]uint64{},
			Method:     map[string]uint64{},
		}
		s.peers[d.Peer] = ps
	}
	ps.StatusCode[d.StatusCode]++
	ps.Method[d.Method]++
	ps.InBytes += d.InBytes
	ps.OutBytes += d.OutBytes
}

// Requests returns the number of requests recorded for peer.
func (s *Stats) Requests(peer string) uint64 {
	s.RLock()
	defer s.RUnlock()

	var total uint64
	if ps, ok := s.peers[peer]; ok {
		for _, count := range ps.StatusCode {
			total += count
		}
	}
	return total
}

func sortedKeys[V any](dict map[string]V) []string {
	keys := make([]string, 0, len(dict))
	for key := range dict {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedMapString(dict map[string]uint64) string {
	result := []string{}
	for _, key := range sortedKeys(dict) {
		result = append(result, fmt.Sprintf("%s:%d", key, dict[key]))
	}
	return strings.Join(result, ", ")
}

// Labels of String.
const (
	STATUS   = "status_code"
	METHOD   = "method"
	INBYTES  = "recv_bytes"
	OUTBYTES = "send_bytes"
)

func (s *Stats) String() string {
	s.RLock()
	defer s.RUnlock()

	toS := func(head string, msg interface{}) string {
		return fmt.Sprintf("%s: %v", head, msg)
	}

	result := []string{"Pool-" + s.name}
	for _, peer := range sortedKeys(s.peers) {
		ps := s.peers[peer]
		result = append(result,
			peer,
			toS(STATUS, sortedMapString(ps.StatusCode)),
			toS(METHOD, sortedMapString(ps.Method)),
			toS(INBYTES, ps.InBytes),
			toS(OUTBYTES, ps.OutBytes),
			"------",
		)
	}
	return strings.Join(result, "\n")
}

// Describe implements prometheus.Collector.
func (s *Stats) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.requestsDesc
	ch <- s.receivedBytesDesc
	ch <- s.sentBytesDesc
	ch <- s.poolPeersDesc
}

// Collect implements prometheus.Collector.
func (s *Stats) Collect(ch chan<- prometheus.Metric) {
	s.RLock()
	defer s.RUnlock()

	for peer, ps := range s.peers {
		for code, count := range ps.StatusCode {
			ch <- prometheus.MustNewConstMetric(s.requestsDesc, prometheus.CounterValue, float64(count), peer, code)
		}
		ch <- prometheus.MustNewConstMetric(s.receivedBytesDesc, prometheus.CounterValue, float64(ps.InBytes), peer)
		ch <- prometheus.MustNewConstMetric(s.sentBytesDesc, prometheus.CounterValue, float64(ps.OutBytes), peer)
	}
	if s.pool != nil {
		ch <- prometheus.MustNewConstMetric(s.poolPeersDesc, prometheus.GaugeValue, float64(s.pool.Size()), "total")
		ch <- prometheus.MustNewConstMetric(s.poolPeersDesc, prometheus.GaugeValue, float64(s.pool.Available()), "available")
	}
}
