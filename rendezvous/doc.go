// Package rendezvous implements Rendezvous, or Highest Random Weight (HRW),
// hashing.
//
// Every (key, node) pair is scored independently by hashing the key's
// encoding followed by the node's encoding, and the key belongs to the node
// with the highest score. Independent clients holding the same node set, the
// same Hasher and the same Funnels therefore agree on every placement without
// talking to each other.
//
// Properties:
//
//   - Load balancing: each node is equally likely to win a key.
//   - Minimal disruption: removing a node only moves the keys it owned, and
//     those spread over all remaining nodes. Adding a node only takes keys
//     for which it scores higher than every existing node.
//   - No history: the answer depends on the current membership only, so
//     removing and re-adding a node restores every assignment.
//
// A Selector may be read from any number of goroutines. Get never takes a
// lock; Add and Remove publish a new immutable snapshot of the node set.
//
// See https://en.wikipedia.org/wiki/Rendezvous_hashing
package rendezvous
