// internal/eligibility/gate.go
package eligibility

import (
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
)

// DefaultSuffix is the brand marker the tracked launcher stamps on its vanity mints.
const DefaultSuffix = "ibox"

// Gate decides whether a detected pool is worth buying into. It is pure and safe for
// concurrent use.
type Gate struct {
	CounterAsset  solana.PublicKey
	Suffix        string
	RequireSuffix bool
}

// NewGate builds a gate; an empty suffix falls back to DefaultSuffix.
func NewGate(counter solana.PublicKey, suffix string, requireSuffix bool) *Gate {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return &Gate{CounterAsset: counter, Suffix: suffix, RequireSuffix: requireSuffix}
}

// Evaluate returns the subject token when exactly one side of the pool is the counter asset
// and the other side carries the brand suffix.
func (g *Gate) Evaluate(ev domain.PoolCreationEvent) (domain.EligibleToken, bool) {
	aIsCounter := ev.TokenA.Equals(g.CounterAsset)
	bIsCounter := ev.TokenB.Equals(g.CounterAsset)
	if aIsCounter == bIsCounter {
		return domain.EligibleToken{}, false
	}

	subject := ev.TokenA
	if aIsCounter {
		subject = ev.TokenB
	}
	if g.RequireSuffix && !HasSuffix(subject, g.Suffix) {
		return domain.EligibleToken{}, false
	}

	return domain.EligibleToken{
		Mint:         subject,
		CounterAsset: g.CounterAsset,
		PoolID:       ev.PoolID,
		Signature:    ev.Signature,
		QuoteReserve: ev.QuoteReserve,
	}, true
}

// HasSuffix compares the tail of the base58 text case-insensitively.
func HasSuffix(mint solana.PublicKey, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(mint.String()), strings.ToLower(suffix))
}
