// Package session implements the process-wide stream-session store: a
// single mutex guarding (platform, room_id) -> upstream URL. The writer is
// the unified command (internal/service); readers are the proxy handlers. No TTL, no eviction beyond
// explicit Remove.
package session

import (
	"sync"

	"github.com/christian-lee/streamcast/internal/model"
)

// Store is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	urls map[model.SessionKey]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{urls: make(map[model.SessionKey]string)}
}

// Insert records the upstream URL for key, replacing any prior value
// (last-writer-wins, no ordering contract across keys).
func (s *Store) Insert(key model.SessionKey, upstreamURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls[key] = upstreamURL
}

// Get returns the upstream URL for key and whether it was present.
// Removing an entry does not affect proxy streams already in flight; this
// is purely a lookup for new requests.
func (s *Store) Get(key model.SessionKey) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.urls[key]
	return u, ok
}

// Remove deletes key if present. A no-op if absent.
func (s *Store) Remove(key model.SessionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.urls, key)
}
