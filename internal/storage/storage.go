// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned when an attempt with the same ID was already recorded.
	ErrDuplicateKey = errors.New("duplicate key")
)

// AttemptStore is the append-only journal of terminal buy attempts.
type AttemptStore interface {
	// Record persists a terminal attempt. Returns ErrDuplicateKey if the ID exists.
	Record(ctx context.Context, a *domain.BuyAttempt) error
	// Get returns one attempt by ID. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*models.Attempt, error)
	// ListByMint returns attempts for a mint, oldest first.
	ListByMint(ctx context.Context, mint string) ([]*models.Attempt, error)
	// ListRecent returns up to limit attempts, newest first.
	ListRecent(ctx context.Context, limit int) ([]*models.Attempt, error)
	Close() error
}

// ErrNotTerminal is returned by Record for attempts that are still running.
var ErrNotTerminal = errors.New("attempt is not terminal")

// Validate checks an attempt before it is written.
func Validate(a *domain.BuyAttempt) error {
	if a == nil || a.ID == "" {
		return errors.New("attempt id is required")
	}
	if !a.Status.Terminal() {
		return ErrNotTerminal
	}
	return nil
}
