package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"
	"sync/atomic"
)

// digestSet is an immutable snapshot of the configured tokens. Only SHA-256
// digests are kept so that every comparison runs over equal-length inputs.
type digestSet struct {
	digests [][sha256.Size]byte
}

// Store holds the set of tokens a proxy may present.
// Contains is lock-free; Reload swaps the whole set with a single atomic
// pointer store, so a reader sees either the old set or the new one.
type Store struct {
	set atomic.Pointer[digestSet]
}

// NewStore creates a store populated with tokens. Blank and duplicate
// entries are dropped. An empty store is valid and rejects everything.
func NewStore(tokens []string) *Store {
	s := &Store{}
	s.Reload(tokens)
	return s
}

// Contains reports whether candidate is one of the configured tokens.
// Every configured token is compared in constant time and the loop never
// exits early, so timing does not depend on where a mismatch occurs.
func (s *Store) Contains(candidate string) bool {
	if s == nil {
		return false
	}
	set := s.set.Load()
	if set == nil {
		return false
	}

	sum := sha256.Sum256([]byte(candidate))
	match := 0
	for i := range set.digests {
		match |= subtle.ConstantTimeCompare(sum[:], set.digests[i][:])
	}
	return match == 1
}

// Reload atomically replaces the active token set.
func (s *Store) Reload(tokens []string) {
	seen := make(map[[sha256.Size]byte]struct{}, len(tokens))
	next := &digestSet{digests: make([][sha256.Size]byte, 0, len(tokens))}

	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		sum := sha256.Sum256([]byte(t))
		if _, dup := seen[sum]; dup {
			continue
		}
		seen[sum] = struct{}{}
		next.digests = append(next.digests, sum)
	}

	s.set.Store(next)
}

// Len returns the number of distinct tokens in the active set.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	set := s.set.Load()
	if set == nil {
		return 0
	}
	return len(set.digests)
}
