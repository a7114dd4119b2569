// internal/detector/layout.go
package detector

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Strategy selects how account roles are located in a pool-creation transaction.
type Strategy string

const (
	// StrategyPositional indexes into the static account keys of the message.
	StrategyPositional Strategy = "positional"
	// StrategyInstruction walks the accounts of the program's own instruction and picks mints
	// by owner lookup.
	StrategyInstruction Strategy = "instruction"
)

// Layout is a versioned description of the pool program's account ordering. Negative
// indexes count from the end of the list (-1 is the last account).
type Layout struct {
	Name        string
	ProgramID   solana.PublicKey
	Strategy    Strategy
	PoolIndex   int
	TokenAIndex int
	TokenBIndex int
	// VerifyMints requires both extracted tokens to be mint accounts of a token program.
	VerifyMints bool
}

// DefaultLayout is the CPMM initialize layout as observed on mainnet.
func DefaultLayout(programID solana.PublicKey) Layout {
	return Layout{
		Name:        "cpmm-v1",
		ProgramID:   programID,
		Strategy:    StrategyPositional,
		PoolIndex:   2,
		TokenAIndex: -1,
		TokenBIndex: -5,
		VerifyMints: true,
	}
}

// Validate checks the descriptor is usable.
func (l Layout) Validate() error {
	if l.ProgramID.IsZero() {
		return fmt.Errorf("layout %s: program id is required", l.Name)
	}
	switch l.Strategy {
	case StrategyPositional:
		if l.TokenAIndex == l.TokenBIndex {
			return fmt.Errorf("layout %s: token indexes must differ", l.Name)
		}
	case StrategyInstruction:
	default:
		return fmt.Errorf("layout %s: unknown strategy %q", l.Name, l.Strategy)
	}
	return nil
}

// at resolves a possibly negative index into keys.
func at(keys []solana.PublicKey, idx int) (solana.PublicKey, bool) {
	if idx < 0 {
		idx += len(keys)
	}
	if idx < 0 || idx >= len(keys) {
		return solana.PublicKey{}, false
	}
	return keys[idx], true
}
