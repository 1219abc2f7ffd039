// Package balancer routes HTTP requests to backend peers with rendezvous
// hashing.
//
// A VirtualServer derives a key from every request (client address, path,
// a header, a cookie or a query parameter) and proxies the request to the
// peer owning that key. Every balancer instance with the same pool agrees on
// the owner, which keeps per-key state such as caches on a single peer. When
// the owner answers with a server error, the request is replayed on the next
// peers of the key's ranking.
package balancer
