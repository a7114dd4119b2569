package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// QuoteRoute is a priced swap route. Amounts are in the smallest unit of each asset.
type QuoteRoute struct {
	InputMint       solana.PublicKey
	OutputMint      solana.PublicKey
	InputAmount     uint64
	OutputAmount    uint64
	OutputAmountMin uint64
	PriceImpactPct  float64
	SlippageBps     int
	// NotBefore is set when the venue reported a future open time for the pool.
	NotBefore *time.Time
	// Payload is the full compute response, handed back to the swap builder untouched.
	Payload json.RawMessage
}

// FeeTier selects one level of a PriorityFeeEstimate.
type FeeTier string

const (
	FeeTierLow    FeeTier = "low"
	FeeTierMedium FeeTier = "medium"
	FeeTierHigh   FeeTier = "high"
)

// ParseFeeTier parses a tier name, case-insensitive.
func ParseFeeTier(s string) (FeeTier, error) {
	switch FeeTier(strings.ToLower(strings.TrimSpace(s))) {
	case FeeTierLow:
		return FeeTierLow, nil
	case FeeTierMedium:
		return FeeTierMedium, nil
	case FeeTierHigh:
		return FeeTierHigh, nil
	}
	return "", fmt.Errorf("unknown fee tier %q", s)
}

// PriorityFeeEstimate holds compute unit prices in micro-lamports.
type PriorityFeeEstimate struct {
	Low    uint64
	Medium uint64
	High   uint64
}

// Pick returns the price for the given tier; unknown tiers fall back to High.
func (e PriorityFeeEstimate) Pick(tier FeeTier) uint64 {
	switch tier {
	case FeeTierLow:
		return e.Low
	case FeeTierMedium:
		return e.Medium
	default:
		return e.High
	}
}
