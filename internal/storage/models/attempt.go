// internal/storage/models/attempt.go
package models

import (
	"time"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
)

// Attempt is the persisted form of a terminal buy attempt.
type Attempt struct {
	ID           string
	Mint         string
	PoolID       string
	CreationTx   string
	QuoteReserve uint64
	Status       string
	RetryCount   int
	TxIDs        []string
	Confirmed    int
	Partial      bool
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// FromDomain flattens an attempt into its row representation. Times are kept at millisecond
// precision so every backend round-trips them exactly.
func FromDomain(a *domain.BuyAttempt) *Attempt {
	rec := &Attempt{
		ID:           a.ID,
		Mint:         a.Token.Mint.String(),
		PoolID:       a.Token.PoolID.String(),
		CreationTx:   a.Token.Signature.String(),
		QuoteReserve: a.Token.QuoteReserve,
		Status:       string(a.Status),
		RetryCount:   a.RetryCount,
		TxIDs:        make([]string, 0, len(a.TxIDs)),
		Confirmed:    a.Confirmed,
		Partial:      a.Partial(),
		StartedAt:    a.StartedAt.UTC().Truncate(time.Millisecond),
		FinishedAt:   a.FinishedAt.UTC().Truncate(time.Millisecond),
	}
	for _, sig := range a.TxIDs {
		rec.TxIDs = append(rec.TxIDs, sig.String())
	}
	if a.Err != nil {
		rec.Error = a.Err.Error()
	}
	return rec
}

// Duration is the wall time of the attempt.
func (a *Attempt) Duration() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}
