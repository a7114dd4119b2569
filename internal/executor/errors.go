// internal/executor/errors.go
package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyInFlight is returned without any network call when the guard key is held.
	ErrAlreadyInFlight = errors.New("buy already in flight")
	// ErrAlreadyBought is returned when the mint was bought before, by this or another instance.
	ErrAlreadyBought = errors.New("token already bought")
	// ErrInsufficientFunds means the wallet cannot cover the buy amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrMissingHolding means the wallet has no account for a non-native input asset.
	ErrMissingHolding = errors.New("input holding account not found")
)

// Stage names the step of an attempt that failed.
type Stage string

const (
	StagePrepare Stage = "prepare"
	StageQuote   Stage = "quote"
	StageBuild   Stage = "build"
	StageDecode  Stage = "decode"
	StageSign    Stage = "sign"
	StageSubmit  Stage = "submit"
	StageConfirm Stage = "confirm"
)

// ExecutionError is the error returned by a failed attempt.
type ExecutionError struct {
	AttemptID string
	Stage     Stage
	// TxIndex is the position in the route sequence for submit/confirm failures, -1 otherwise.
	TxIndex int
	// Partial is set when earlier transactions of the route were already confirmed.
	Partial bool
	Err     error
}

func (e *ExecutionError) Error() string {
	s := fmt.Sprintf("attempt %s: %s", e.AttemptID, e.Stage)
	if e.TxIndex >= 0 {
		s += fmt.Sprintf(" tx %d", e.TxIndex)
	}
	if e.Partial {
		s += " (partial execution)"
	}
	return s + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsPartial reports whether err describes a route that stopped after changing chain state.
func IsPartial(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee) && ee.Partial
}
