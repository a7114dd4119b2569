// internal/domain/event.go
package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// LogBatch is one delivery from the program log subscription.
type LogBatch struct {
	Signature  solana.Signature
	Slot       uint64
	Logs       []string
	Err        interface{}
	ReceivedAt time.Time
}

// Failed reports whether the transaction behind the batch errored on chain.
func (b LogBatch) Failed() bool {
	return b.Err != nil
}

// LiquiditySnapshot holds the vault balances disclosed by the pool program.
type LiquiditySnapshot struct {
	Vault0 uint64
	Vault1 uint64
}

// QuoteReserve returns the smaller vault, which is treated as the quote asset side.
func (s LiquiditySnapshot) QuoteReserve() uint64 {
	if s.Vault0 < s.Vault1 {
		return s.Vault0
	}
	return s.Vault1
}

// PoolCreationEvent is produced once per matched signature and never persisted.
type PoolCreationEvent struct {
	Signature    solana.Signature
	Slot         uint64
	PoolID       solana.PublicKey
	TokenA       solana.PublicKey
	TokenB       solana.PublicKey
	QuoteReserve uint64
	ObservedAt   time.Time
}

// EligibleToken is the subject of a buy attempt.
type EligibleToken struct {
	Mint         solana.PublicKey
	CounterAsset solana.PublicKey
	PoolID       solana.PublicKey
	Signature    solana.Signature
	QuoteReserve uint64
}
