// Package pool provides a set of backend peers placed with rendezvous
// hashing.
//
// Every balancer instance configured with the same peers and hash function
// sends a key to the same peer. Taking a peer down only moves the keys it
// owned, and bringing it back up restores them.
package pool
