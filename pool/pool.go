package pool

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/onestraw/hrwlb/rendezvous"
)

// ErrNoPeer is returned when a pool has no available peer.
var ErrNoPeer = errors.New("no available peer")

// Pool is a set of peers addressed by "host:port".
//
// Membership changes are serialized on the embedded mutex. Lookups go to the
// selector directly and never wait for them.
type Pool struct {
	sync.Mutex
	// peer address -> down
	peers    map[string]bool
	selector *rendezvous.Selector[string, string]
}

// New returns an empty Pool scoring peers with hasher.
func New(hasher rendezvous.Hasher) *Pool {
	return &Pool{
		peers:    map[string]bool{},
		selector: rendezvous.New(hasher, rendezvous.StringFunnel, rendezvous.StringFunnel, nil),
	}
}

// CreatePool returns a Pool holding addrs.
func CreatePool(hasher rendezvous.Hasher, addrs []string) *Pool {
	pool := New(hasher)
	for _, addr := range addrs {
		pool.Add(addr)
	}
	return pool
}

// Add adds a peer and reports whether it was new. Empty addresses are
// ignored.
func (p *Pool) Add(addr string) bool {
	if addr == "" {
		return false
	}
	p.Lock()
	defer p.Unlock()

	if _, ok := p.peers[addr]; ok {
		return false
	}
	p.peers[addr] = false
	p.selector.Add(addr)
	return true
}

// Remove deletes a peer and reports whether it was a member.
func (p *Pool) Remove(addr string) bool {
	p.Lock()
	defer p.Unlock()

	if _, ok := p.peers[addr]; !ok {
		return false
	}
	delete(p.peers, addr)
	p.selector.Remove(addr)
	return true
}

func (p *Pool) setPeerStatus(addr string, isDown bool) bool {
	p.Lock()
	defer p.Unlock()

	down, ok := p.peers[addr]
	if !ok || down == isDown {
		return false
	}
	p.peers[addr] = isDown
	if isDown {
		p.selector.Remove(addr)
	} else {
		p.selector.Add(addr)
	}
	return true
}

// DownPeer takes a member out of rotation without forgetting it. It reports
// whether the status changed.
func (p *Pool) DownPeer(addr string) bool {
	return p.setPeerStatus(addr, true)
}

// UpPeer puts a member taken down by DownPeer back into rotation. Keys it
// owned before going down return to it.
func (p *Pool) UpPeer(addr string) bool {
	return p.setPeerStatus(addr, false)
}

// Get returns the peer owning key.
func (p *Pool) Get(key string) (string, error) {
	peer, err := p.selector.Get(key)
	if err != nil {
		return "", ErrNoPeer
	}
	return peer, nil
}

// GetN returns up to n available peers in the failover order of key.
func (p *Pool) GetN(key string, n int) ([]string, error) {
	peers, err := p.selector.GetN(key, n)
	if err != nil {
		return nil, ErrNoPeer
	}
	return peers, nil
}

// Size returns the number of members, including the ones that are down.
func (p *Pool) Size() int {
	p.Lock()
	defer p.Unlock()
	return len(p.peers)
}

// Available returns the number of members in rotation.
func (p *Pool) Available() int {
	return p.selector.Len()
}

// Peers returns all member addresses, sorted.
func (p *Pool) Peers() []string {
	p.Lock()
	defer p.Unlock()
	result := make([]string, 0, len(p.peers))
	for addr := range p.peers {
		result = append(result, addr)
	}
	sort.Strings(result)
	return result
}

func (p *Pool) String() string {
	p.Lock()
	defer p.Unlock()
	result := []string{}
	for addr, down := range p.peers {
		if down {
			addr += " (down)"
		}
		result = append(result, addr)
	}
	sort.Strings(result)
	return strings.Join(result, ", ")
}
