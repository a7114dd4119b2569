package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// AttemptStatus is the lifecycle state of a BuyAttempt.
type AttemptStatus string

const (
	StatusQuoting        AttemptStatus = "quoting"
	StatusWaitingForOpen AttemptStatus = "waiting_for_open"
	StatusSubmitting     AttemptStatus = "submitting"
	StatusConfirming     AttemptStatus = "confirming"
	StatusSucceeded      AttemptStatus = "succeeded"
	StatusFailed         AttemptStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s AttemptStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// BuyAttempt is the state of one purchase. It is owned by the executor goroutine running it.
type BuyAttempt struct {
	ID         string
	Token      EligibleToken
	Status     AttemptStatus
	RetryCount int
	StartedAt  time.Time
	FinishedAt time.Time
	TxIDs      []solana.Signature
	// Confirmed counts transactions of the route that reached confirmation.
	Confirmed int
	Err       error
}

// NewBuyAttempt starts an attempt in the Quoting state.
func NewBuyAttempt(token EligibleToken) *BuyAttempt {
	return &BuyAttempt{
		ID:        uuid.New().String(),
		Token:     token,
		Status:    StatusQuoting,
		StartedAt: time.Now(),
	}
}

// Finish moves the attempt to its terminal state.
func (a *BuyAttempt) Finish(err error) {
	a.FinishedAt = time.Now()
	a.Err = err
	if err != nil {
		a.Status = StatusFailed
		return
	}
	a.Status = StatusSucceeded
}

// Partial reports a failed multi-transaction route that already changed chain state.
func (a *BuyAttempt) Partial() bool {
	return a.Status == StatusFailed && a.Confirmed > 0
}

// LastTx returns the final submitted signature, zero if nothing was sent.
func (a *BuyAttempt) LastTx() solana.Signature {
	if len(a.TxIDs) == 0 {
		return solana.Signature{}
	}
	return a.TxIDs[len(a.TxIDs)-1]
}

// Duration is the wall time spent, up to now for a running attempt.
func (a *BuyAttempt) Duration() time.Duration {
	if a.FinishedAt.IsZero() {
		return time.Since(a.StartedAt)
	}
	return a.FinishedAt.Sub(a.StartedAt)
}
