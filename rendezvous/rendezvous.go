package rendezvous

import (
	"bytes"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrNoNodes is returned when a key is looked up in an empty pool.
var ErrNoNodes = errors.New("no nodes in pool")

// Selector assigns keys of type K to nodes of type N with rendezvous hashing.
//
// Readers load the current node snapshot atomically and never block. Writers
// serialize on mu, copy the snapshot, and publish the copy. A Get racing with
// an Add or Remove sees either the old or the new pool, never a mix.
//
// Selectors are created with New. The zero value reads as an empty pool but
// has no hasher to score nodes with.
type Selector[K any, N comparable] struct {
	hasher     Hasher
	keyFunnel  Funnel[K]
	nodeFunnel Funnel[N]

	nodes atomic.Pointer[[]N]

	// mu serializes writers. members mirrors the published snapshot.
	mu      sync.Mutex
	members map[N]struct{}
}

// New returns a Selector over the nodes in init. Duplicate nodes are
// collapsed. The funnels encode keys and nodes for hasher; see Funnel for
// their contract.
func New[K any, N comparable](hasher Hasher, keyFunnel Funnel[K], nodeFunnel Funnel[N], init []N) *Selector[K, N] {
	s := &Selector[K, N]{
		hasher:     hasher,
		keyFunnel:  keyFunnel,
		nodeFunnel: nodeFunnel,
		members:    make(map[N]struct{}, len(init)),
	}
	nodes := make([]N, 0, len(init))
	for _, node := range init {
		if _, ok := s.members[node]; ok {
			continue
		}
		s.members[node] = struct{}{}
		nodes = append(nodes, node)
	}
	s.nodes.Store(&nodes)
	return s
}

// snapshot returns the published node set, nil before the first publish.
func (s *Selector[K, N]) snapshot() []N {
	if nodes := s.nodes.Load(); nodes != nil {
		return *nodes
	}
	return nil
}

// Add inserts node into the pool and reports whether it was not already
// present. Keys move to node only where it outscores every existing node.
func (s *Selector[K, N]) Add(node N) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[node]; ok {
		return false
	}
	if s.members == nil {
		s.members = map[N]struct{}{}
	}
	old := s.snapshot()
	nodes := make([]N, len(old), len(old)+1)
	copy(nodes, old)
	nodes = append(nodes, node)

	s.members[node] = struct{}{}
	s.nodes.Store(&nodes)
	return true
}

// Remove deletes node from the pool and reports whether it was present. The
// keys node owned spread over the remaining nodes.
func (s *Selector[K, N]) Remove(node N) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[node]; !ok {
		return false
	}
	old := s.snapshot()
	nodes := make([]N, 0, len(old)-1)
	for _, n := range old {
		if n != node {
			nodes = append(nodes, n)
		}
	}

	delete(s.members, node)
	s.nodes.Store(&nodes)
	return true
}

// Get returns the node with the highest score for key, or ErrNoNodes if the
// pool is empty.
//
// Equal scores are resolved in favor of the node with the lexicographically
// greater encoding, so the result never depends on insertion order.
func (s *Selector[K, N]) Get(key K) (N, error) {
	var best N
	nodes := s.snapshot()
	if len(nodes) == 0 {
		return best, ErrNoNodes
	}

	buf := s.keyFunnel(make([]byte, 0, 64), key)
	keyLen := len(buf)

	var bestScore uint64
	var bestEnc []byte
	for i, node := range nodes {
		buf = s.nodeFunnel(buf[:keyLen], node)
		score := s.hasher(buf)
		switch {
		case i == 0 || score > bestScore:
			best, bestScore, bestEnc = node, score, nil
		case score == bestScore:
			if bestEnc == nil {
				bestEnc = s.nodeFunnel(nil, best)
			}
			if bytes.Compare(buf[keyLen:], bestEnc) > 0 {
				best = node
				bestEnc = append(bestEnc[:0], buf[keyLen:]...)
			}
		}
	}
	return best, nil
}

type scoredNode[N any] struct {
	node  N
	score uint64
}

// GetN returns up to n nodes ranked for key, best first. The first entry is
// always the node Get returns. n is clamped to the pool size; a non-positive
// n yields an empty result. ErrNoNodes is returned if the pool is empty.
//
// The ranking is the failover order for key: when the owner is unreachable,
// every client independently falls back to the same second choice.
func (s *Selector[K, N]) GetN(key K, n int) ([]N, error) {
	nodes := s.snapshot()
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	if n <= 0 {
		return nil, nil
	}
	if n > len(nodes) {
		n = len(nodes)
	}

	buf := s.keyFunnel(make([]byte, 0, 64), key)
	keyLen := len(buf)
	ranked := make([]scoredNode[N], len(nodes))
	for i, node := range nodes {
		buf = s.nodeFunnel(buf[:keyLen], node)
		ranked[i] = scoredNode[N]{node: node, score: s.hasher(buf)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return bytes.Compare(s.nodeFunnel(nil, ranked[i].node), s.nodeFunnel(nil, ranked[j].node)) > 0
	})

	result := make([]N, n)
	for i := range result {
		result[i] = ranked[i].node
	}
	return result, nil
}

// Nodes returns a copy of the current pool in insertion order.
func (s *Selector[K, N]) Nodes() []N {
	nodes := s.snapshot()
	return append([]N(nil), nodes...)
}

// Len returns the current pool size.
func (s *Selector[K, N]) Len() int {
	return len(s.snapshot())
}

// Contains reports whether node is in the current pool.
func (s *Selector[K, N]) Contains(node N) bool {
	for _, n := range s.snapshot() {
		if n == node {
			return true
		}
	}
	return false
}
