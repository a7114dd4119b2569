// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage/models"
)

// AttemptStore keeps the journal in process memory. It is the default when no DSN is set.
type AttemptStore struct {
	mu    sync.RWMutex
	byID  map[string]*models.Attempt
	order []string
}

var _ storage.AttemptStore = (*AttemptStore)(nil)

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{byID: make(map[string]*models.Attempt)}
}

func (s *AttemptStore) Record(_ context.Context, a *domain.BuyAttempt) error {
	if err := storage.Validate(a); err != nil {
		return err
	}
	rec := models.FromDomain(a)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rec.ID]; ok {
		return storage.ErrDuplicateKey
	}
	s.byID[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *AttemptStore) Get(_ context.Context, id string) (*models.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(rec), nil
}

func (s *AttemptStore) ListByMint(_ context.Context, mint string) ([]*models.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Attempt
	for _, id := range s.order {
		if rec := s.byID[id]; rec.Mint == mint {
			out = append(out, clone(rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *AttemptStore) ListRecent(_ context.Context, limit int) ([]*models.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Attempt, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clone(s.byID[id]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AttemptStore) Close() error { return nil }

func clone(rec *models.Attempt) *models.Attempt {
	cp := *rec
	cp.TxIDs = append([]string(nil), rec.TxIDs...)
	return &cp
}
