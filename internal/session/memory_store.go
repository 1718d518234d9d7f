package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process session store with an explicit TTL sweep.
// Used in tests and single-node deployments; safe for concurrent access
// from different customers sharing the process.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store. Call StartSweeper to reclaim
// expired entries in the background; Get checks expiry regardless, so a
// session is never observable past its TTL even between sweeps.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// WithClock overrides the store's clock. Tests only.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Put(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key(sess.SalonID, sess.CustomerID)] = memoryEntry{
		session:   sess,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, salonID, customerID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[key(salonID, customerID)]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.sessions, key(salonID, customerID))
		return nil, ErrNotFound
	}
	return entry.session, nil
}

func (s *MemoryStore) Delete(_ context.Context, salonID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key(salonID, customerID))
	return nil
}

// StartSweeper removes expired sessions every interval until Close is called.
func (s *MemoryStore) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// Close stops the sweeper goroutine.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, entry := range s.sessions {
		if !now.Before(entry.expiresAt) {
			delete(s.sessions, k)
		}
	}
}

// Len reports the number of live entries, counting not-yet-swept expired ones.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
