// internal/guard/seen.go
package guard

import (
	"context"
	"sync"
	"time"
)

// SeenSet remembers keys for a limited time. Implementations are shared between the
// subscription loop (signatures) and the executor (bought mints).
type SeenSet interface {
	// Claim records key and reports whether this call added it.
	Claim(ctx context.Context, key string) (bool, error)
	// Seen reports whether key is present.
	Seen(ctx context.Context, key string) (bool, error)
}

// Key helpers keep both users of the set in separate namespaces.
func SignatureKey(sig string) string { return "sig:" + sig }
func BoughtKey(mint string) string   { return "bought:" + mint }

// MemorySeenSet is the single-process SeenSet.
type MemorySeenSet struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
	// чистка просроченных записей раз в sweepEvery вызовов Claim
	claims     int
	sweepEvery int
}

// NewMemorySeenSet creates a set whose entries expire after ttl; ttl <= 0 keeps them forever.
func NewMemorySeenSet(ttl time.Duration) *MemorySeenSet {
	return &MemorySeenSet{
		ttl:        ttl,
		entries:    make(map[string]time.Time),
		now:        time.Now,
		sweepEvery: 1024,
	}
}

func (s *MemorySeenSet) Claim(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.claims++
	if s.claims%s.sweepEvery == 0 {
		s.sweepLocked(now)
	}

	if s.liveLocked(key, now) {
		return false, nil
	}
	var exp time.Time
	if s.ttl > 0 {
		exp = now.Add(s.ttl)
	}
	s.entries[key] = exp
	return true, nil
}

func (s *MemorySeenSet) Seen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(key, s.now()), nil
}

// Len returns the number of stored entries, expired ones included until the next sweep.
func (s *MemorySeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemorySeenSet) liveLocked(key string, now time.Time) bool {
	exp, ok := s.entries[key]
	if !ok {
		return false
	}
	if !exp.IsZero() && !now.Before(exp) {
		delete(s.entries, key)
		return false
	}
	return true
}

func (s *MemorySeenSet) sweepLocked(now time.Time) {
	for k, exp := range s.entries {
		if !exp.IsZero() && !now.Before(exp) {
			delete(s.entries, k)
		}
	}
}

var _ SeenSet = (*MemorySeenSet)(nil)
