package kvstore

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a volatile Store; its contents vanish with the process
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type session struct {
	store    *MemoryStore
	lastSeen time.Time
}

// Sessions hands out one MemoryStore per session id and forgets sessions
// that have been idle longer than ttl.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessions creates a registry; ttl <= 0 keeps sessions until the process exits
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// NewID returns a random session id
func (s *Sessions) NewID() string {
	return uuid.NewString()
}

// Lookup returns the store for id, creating it on first use
func (s *Sessions) Lookup(id string) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)

	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{store: NewMemoryStore()}
		s.sessions[id] = sess
	}
	sess.lastSeen = now
	return sess.store
}

// End discards the session's store
func (s *Sessions) End(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of live sessions
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(s.now())
	return len(s.sessions)
}

func (s *Sessions) expireLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
