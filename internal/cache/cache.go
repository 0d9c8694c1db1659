package cache

import (
	"context"
	"sync"
	"time"
)

// SubmissionGuard remembers idempotency keys for a while so a double-clicked
// checkout is only registered once.
type SubmissionGuard interface {
	// Claim reports true when the key was not seen within ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets a key, used when the claimed submission was rejected.
	Release(ctx context.Context, key string) error
}

type MemorySubmissionGuard struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemorySubmissionGuard() *MemorySubmissionGuard {
	return &MemorySubmissionGuard{
		keys: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (g *MemorySubmissionGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, expires := range g.keys {
		if !now.Before(expires) {
			delete(g.keys, k)
		}
	}
	if _, seen := g.keys[key]; seen {
		return false, nil
	}
	g.keys[key] = now.Add(ttl)
	return true, nil
}

func (g *MemorySubmissionGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.keys, key)
	g.mu.Unlock()
	return nil
}
