package balancer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/onestraw/hrwlb/config"
	"github.com/onestraw/hrwlb/pool"
	"github.com/onestraw/hrwlb/rendezvous"
	"github.com/onestraw/hrwlb/retry"
	"github.com/onestraw/hrwlb/stats"
)

const (
	PROTO_HTTP         = "http"
	PROTO_HTTPS        = "https"
	DEFAULT_SERVERNAME = "localhost"
	STATUS_RUNNING     = "running"
	STATUS_STOPPED     = "stopped"

	shutdownTimeout = 5 * time.Second
)

// VirtualServer listens on Address and proxies requests to its Pool.
type VirtualServer struct {
	sync.RWMutex
	Name       string
	Address    string
	ServerName string
	Protocol   string
	CertFile   string
	KeyFile    string
	Hash       string
	HashKey    string
	Pool       *pool.Pool

	hasher  rendezvous.Hasher
	keyFunc KeyFunc
	peers   []string
	stats   *stats.Stats
	// peer address -> *httputil.ReverseProxy
	proxies sync.Map

	server     *http.Server
	listenAddr string
	status     string
}

type VirtualServerOption func(*VirtualServer) error

func NameOpt(name string) VirtualServerOption {
	return func(vs *VirtualServer) error {
		if name == "" {
			return ErrVirtualServerNameEmpty
		}
		vs.Name = name
		return nil
	}
}

func AddressOpt(addr string) VirtualServerOption {
	return func(vs *VirtualServer) error {
		if addr == "" {
			return ErrVirtualServerAddressEmpty
		}
		vs.Address = addr
		return nil
	}
}

func ServerNameOpt(serverName string) VirtualServerOption {
	return func(vs *VirtualServer) error {
		if serverName == "" {
			serverName = DEFAULT_SERVERNAME
		}
		vs.ServerName = serverName
		return nil
	}
}

func ProtocolOpt(proto string) VirtualServerOption {
	return func(vs *VirtualServer) error {
		if proto == "" {
			proto = PROTO_HTTP
		}
		if proto != PROTO_HTTP && proto != PROTO_HTTPS {
			return ErrNotSupportedProto
		}
		vs.Protocol = proto
		return nil
	}
}

func TLSOpt(certFile, keyFile string) VirtualServerOption {
	return func(vs *VirtualServer) error {
		if _, err := os.Stat(certFile); err != nil {
			return fmt.Errorf("cert file %q does not exist", certFile)
		}
		if _, err := os.Stat(keyFile); err != nil {
			return fmt.Errorf("key file %q does not exist", keyFile)
		}
		vs.CertFile = certFile
		vs.KeyFile = keyFile
		return nil
	}
}

// HashOpt selects the rendezvous hash function by name.
func HashOpt(name string) VirtualServerOption {
	return func(vs *VirtualServer) error {
		if name == "" {
			name = rendezvous.DefaultHash
		}
		hasher, err := rendezvous.LookupHasher(name)
		if err != nil {
			return err
		}
		vs.Hash = name
		vs.hasher = hasher
		return nil
	}
}

// HashKeyOpt selects the request attribute used as key, see ParseHashKey.
func HashKeyOpt(hashKey string) VirtualServerOption {
	return func(vs *VirtualServer) error {
		if hashKey == "" {
			hashKey = KEY_REMOTE_ADDR
		}
		keyFunc, err := ParseHashKey(hashKey)
		if err != nil {
			return err
		}
		vs.HashKey = hashKey
		vs.keyFunc = keyFunc
		return nil
	}
}

func PoolOpt(peers []config.Server) VirtualServerOption {
	return func(vs *VirtualServer) error {
		vs.peers = make([]string, len(peers))
		for i, peer := range peers {
			vs.peers[i] = peer.Address
		}
		return nil
	}
}

// NewVirtualServer returns a stopped VirtualServer.
func NewVirtualServer(opts ...VirtualServerOption) (*VirtualServer, error) {
	vs := &VirtualServer{
		ServerName: DEFAULT_SERVERNAME,
		Protocol:   PROTO_HTTP,
		Hash:       rendezvous.DefaultHash,
		HashKey:    KEY_REMOTE_ADDR,
		hasher:     rendezvous.XXHash,
		keyFunc:    remoteHost,
		status:     STATUS_STOPPED,
	}
	for _, opt := range opts {
		if err := opt(vs); err != nil {
			return nil, err
		}
	}
	if vs.Protocol == PROTO_HTTPS && (vs.CertFile == "" || vs.KeyFile == "") {
		return nil, ErrTLSNotConfigured
	}
	vs.Pool = pool.CreatePool(vs.hasher, vs.peers)
	vs.peers = nil
	vs.stats = stats.New(vs.Name, vs.Pool)
	return vs, nil
}

// Run starts listening. An Address with port 0 picks a free port, see
// ListenAddr.
func (vs *VirtualServer) Run() error {
	vs.Lock()
	defer vs.Unlock()

	if vs.status == STATUS_RUNNING {
		return ErrVirtualServerRunning
	}
	var tlsConfig *tls.Config
	if vs.Protocol == PROTO_HTTPS {
		cert, err := tls.LoadX509KeyPair(vs.CertFile, vs.KeyFile)
		if err != nil {
			return fmt.Errorf("virtual server %s: %w", vs.Name, err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	ln, err := net.Listen("tcp", vs.Address)
	if err != nil {
		return err
	}
	server := &http.Server{Handler: vs}
	vs.server = server
	vs.listenAddr = ln.Addr().String()
	vs.status = STATUS_RUNNING
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("virtual server %s err=%v", vs.Name, err)
		}
	}()

	log.Infof("Listen %s, proto %s, hash %s, key %s, pool %v",
		vs.listenAddr, vs.Protocol, vs.Hash, vs.HashKey, vs.Pool)
	return nil
}

// Stop shuts the listener down, waiting for in-flight requests.
func (vs *VirtualServer) Stop() error {
	vs.Lock()
	defer vs.Unlock()

	if vs.status != STATUS_RUNNING {
		return ErrVirtualServerStopped
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := vs.server.Shutdown(ctx)

	vs.server = nil
	vs.status = STATUS_STOPPED
	log.Infof("virtual server %s stopped", vs.Name)
	return err
}

// Status returns STATUS_RUNNING or STATUS_STOPPED.
func (vs *VirtualServer) Status() string {
	vs.RLock()
	defer vs.RUnlock()
	return vs.status
}

// ListenAddr returns the address the last Run bound to.
func (vs *VirtualServer) ListenAddr() string {
	vs.RLock()
	defer vs.RUnlock()
	return vs.listenAddr
}

func hostname(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// ServeHTTP dispatches the request to the peer owning its key.
func (vs *VirtualServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if hostname(r.Host) != vs.ServerName {
		log.Errorf("Host not match, host=%s", r.Host)
		WriteError(w, ErrHostNotMatch)
		return
	}

	key := vs.keyFunc(r)
	peers, err := vs.Pool.GetN(key, retry.Attempts)
	if err != nil {
		log.Errorf("Peer not found, key=%q err=%v", key, err)
		WriteError(w, ErrPeerNotFound)
		return
	}

	attempts := retry.Failover(w, r, peers, vs.proxy)
	for _, a := range attempts {
		vs.stats.Inc(&stats.Data{
			Peer:       a.Peer,
			StatusCode: strconv.Itoa(a.StatusCode),
			Method:     r.Method,
			InBytes:    a.InBytes,
			OutBytes:   a.OutBytes,
		})
	}
}

func (vs *VirtualServer) proxy(peer string, w http.ResponseWriter, r *http.Request) {
	rp, err := vs.reverseProxy(peer)
	if err != nil {
		log.Errorf("url.Parse peer=%s, error=%v", peer, err)
		WriteError(w, ErrInternalBalancer)
		return
	}
	rp.ServeHTTP(w, r)
}

func (vs *VirtualServer) reverseProxy(peer string) (*httputil.ReverseProxy, error) {
	if rp, ok := vs.proxies.Load(peer); ok {
		return rp.(*httputil.ReverseProxy), nil
	}
	target, err := url.Parse("http://" + peer)
	if err != nil {
		return nil, err
	}
	rp := httputil.NewSingleHostReverseProxy(target)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Errorf("proxy to %s err=%v", peer, err)
		WriteError(w, ErrPeerUnreachable)
	}
	actual, _ := vs.proxies.LoadOrStore(peer, rp)
	return actual.(*httputil.ReverseProxy), nil
}

// AddPeer adds a peer to the pool and reports whether it was new.
func (vs *VirtualServer) AddPeer(addr string) bool {
	ok := vs.Pool.Add(addr)
	if ok {
		log.Infof("virtual server %s: add peer %s", vs.Name, addr)
	}
	return ok
}

// RemovePeer removes a peer from the pool and reports whether it was a
// member.
func (vs *VirtualServer) RemovePeer(addr string) bool {
	ok := vs.Pool.Remove(addr)
	if ok {
		vs.proxies.Delete(addr)
		log.Infof("virtual server %s: remove peer %s", vs.Name, addr)
	}
	return ok
}

// DownPeer takes a peer out of rotation.
func (vs *VirtualServer) DownPeer(addr string) bool {
	ok := vs.Pool.DownPeer(addr)
	if ok {
		log.Infof("virtual server %s: peer %s is down", vs.Name, addr)
	}
	return ok
}

// UpPeer puts a peer back into rotation.
func (vs *VirtualServer) UpPeer(addr string) bool {
	ok := vs.Pool.UpPeer(addr)
	if ok {
		log.Infof("virtual server %s: peer %s is up", vs.Name, addr)
	}
	return ok
}

// Lookup returns up to n peers ranked for key, owner first.
func (vs *VirtualServer) Lookup(key string, n int) ([]string, error) {
	return vs.Pool.GetN(key, n)
}

// Stats returns the request stats as text.
func (vs *VirtualServer) Stats() string {
	return vs.stats.String()
}

// Collector returns the Prometheus collector of the request stats.
func (vs *VirtualServer) Collector() prometheus.Collector {
	return vs.stats
}
