package rendezvous

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"
)

// ErrUnknownHasher is returned by LookupHasher for unregistered names.
var ErrUnknownHasher = errors.New("unknown hash function")

// Hasher scores the concatenated encoding of a key and a node.
//
// It must be deterministic and spread its output uniformly over the 64-bit
// range: poor mixing shows up directly as load imbalance. Cryptographic
// strength is not needed.
type Hasher func(data []byte) uint64

// Built-in hash functions.
var (
	XXHash  Hasher = xxhash.Sum64
	XXH3    Hasher = xxh3.Hash
	Murmur3 Hasher = murmur3Sum64
	Blake3  Hasher = blake3Sum64
)

// Names accepted by LookupHasher.
const (
	HashXXHash  = "xxhash"
	HashXXH3    = "xxh3"
	HashMurmur3 = "murmur3"
	HashBlake3  = "blake3"

	DefaultHash = HashXXHash
)

var hashers = map[string]Hasher{
	HashXXHash:  XXHash,
	HashXXH3:    XXH3,
	HashMurmur3: Murmur3,
	HashBlake3:  Blake3,
}

// LookupHasher returns the built-in Hasher registered under name. An empty
// name selects DefaultHash.
func LookupHasher(name string) (Hasher, error) {
	if name == "" {
		name = DefaultHash
	}
	h, ok := hashers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
	}
	return h, nil
}

// HasherNames lists the names accepted by LookupHasher, sorted.
func HasherNames() []string {
	names := make([]string, 0, len(hashers))
	for name := range hashers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// murmur3Sum64 keeps the first half of the 128-bit murmur3 digest.
func murmur3Sum64(data []byte) uint64 {
	h1, _ := murmur3.Sum128(data)
	return h1
}

func blake3Sum64(data []byte) uint64 {
	sum := blake3.Sum256(data)
	return binary.LittleEndian.Uint64(sum[:8])
}
