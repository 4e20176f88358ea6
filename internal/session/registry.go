package session

import (
	"sync"
	"time"
)

// Session is the per-player-connection context a shim reports on. It
// carries attributes that later stages of the same connection can read,
// such as whether its handshake was verified.
type Session struct {
	ConnID     string
	OwnerID    string // shim connection that reported it
	RemoteAddr string
	CreatedAt  time.Time

	attrs map[string]any
	mu    sync.RWMutex
}

// NewSession creates an empty session.
func NewSession(ownerID, connID, remoteAddr string, now time.Time) *Session {
	return &Session{
		ConnID:     connID,
		OwnerID:    ownerID,
		RemoteAddr: remoteAddr,
		CreatedAt:  now,
		attrs:      make(map[string]any),
	}
}

// Set stores an attribute.
func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs[key] = value
}

// Get returns an attribute and whether it was set.
func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.attrs[key]
	return v, ok
}

type key struct {
	owner string
	conn  string
}

// Registry is a thread-safe store of sessions, scoped per owner so two
// shims may reuse the same connection IDs.
type Registry struct {
	byKey   map[key]*Session
	byOwner map[string]map[string]struct{}
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey:   make(map[key]*Session),
		byOwner: make(map[string]map[string]struct{}),
	}
}

// GetOrCreate returns the session for (ownerID, connID), creating it if needed.
func (r *Registry) GetOrCreate(ownerID, connID, remoteAddr string, now time.Time) *Session {
	k := key{ownerID, connID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byKey[k]; ok {
		return s
	}

	s := NewSession(ownerID, connID, remoteAddr, now)
	r.byKey[k] = s
	conns, ok := r.byOwner[ownerID]
	if !ok {
		conns = make(map[string]struct{})
		r.byOwner[ownerID] = conns
	}
	conns[connID] = struct{}{}
	return s
}

// Get retrieves a session.
func (r *Registry) Get(ownerID, connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byKey[key{ownerID, connID}]
	return s, ok
}

// Remove deletes a session. Returns true if it existed.
func (r *Registry) Remove(ownerID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(key{ownerID, connID})
}

// RemoveOwner deletes every session reported by ownerID and returns how
// many were removed.
func (r *Registry) RemoveOwner(ownerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.byOwner[ownerID]
	n := 0
	for connID := range conns {
		if r.removeLocked(key{ownerID, connID}) {
			n++
		}
	}
	return n
}

// PruneExpired removes sessions older than ttl. Returns the number pruned.
func (r *Registry) PruneExpired(now time.Time, ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	for k, s := range r.byKey {
		if now.Sub(s.CreatedAt) > ttl {
			r.removeLocked(k)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}

func (r *Registry) removeLocked(k key) bool {
	if _, ok := r.byKey[k]; !ok {
		return false
	}
	delete(r.byKey, k)
	if conns, ok := r.byOwner[k.owner]; ok {
		delete(conns, k.conn)
		if len(conns) == 0 {
			delete(r.byOwner, k.owner)
		}
	}
	return true
}
