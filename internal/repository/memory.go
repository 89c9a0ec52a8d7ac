package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryClaimStore keeps claims in process memory. Claims do not survive a
// restart, so it is only used when Redis is unavailable.
type MemoryClaimStore struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (r *MemoryClaimStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if expiresAt, ok := r.claims[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	r.claims[key] = now.Add(ttl)
	r.gc(now)
	return true, nil
}

func (r *MemoryClaimStore) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claims, key)
	return nil
}

// gc drops expired claims; caller holds mu.
func (r *MemoryClaimStore) gc(now time.Time) {
	for key, expiresAt := range r.claims {
		if !now.Before(expiresAt) {
			delete(r.claims, key)
		}
	}
}
