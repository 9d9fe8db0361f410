// ABOUTME: In-memory challenge store with TTL expiry and background cleanup
// ABOUTME: Suitable for single-process deployments; state is lost on restart

package challenge

import (
	"context"
	"sync"
	"time"
)

// entry holds one outstanding challenge and its deadline.
type entry struct {
	challenge []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store keyed by username. Expired entries are
// swept by a background goroutine; Close stops it.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	cancel  context.CancelFunc
}

// NewMemoryStore creates a MemoryStore whose challenges expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &MemoryStore{
		entries: make(map[string]*entry),
		ttl:     ttl,
		cancel:  cancel,
	}
	// Start cleanup goroutine
	go s.cleanupLoop(ctx)
	return s
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Issue creates a fresh challenge for the username, replacing any
// outstanding one.
func (s *MemoryStore) Issue(_ context.Context, username string) ([]byte, error) {
	chal, err := newChallenge()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[username] = &entry{
		challenge: chal,
		expiresAt: time.Now().Add(s.ttl),
	}
	return chal, nil
}

// Redeem removes and returns the outstanding challenge for the username.
func (s *MemoryStore) Redeem(_ context.Context, username string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[username]
	if !ok {
		return nil, ErrNoChallenge
	}
	delete(s.entries, username)

	if time.Now().After(e.expiresAt) {
		return nil, ErrNoChallenge
	}
	return e.challenge, nil
}

func (s *MemoryStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for k, v := range s.entries {
				if now.After(v.expiresAt) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
