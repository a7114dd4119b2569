// internal/detector/filter.go
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/cpmm-sniper/internal/blockchain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/blockchain/solbc"
	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
)

// ErrTransactionUnavailable marks infrastructure failures while resolving a candidate. The event is dropped,
// never re-queued.
var ErrTransactionUnavailable = errors.New("chain fetch failed")

// ChainReader is the subset of the chain client the filter needs.
type ChainReader interface {
	GetTransaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (*blockchain.FetchedTransaction, error)
	GetMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*rpc.Account, error)
}

// Config tunes the filter.
type Config struct {
	Layout Layout
	// MinQuoteReserve discards pools whose smaller vault is below this amount.
	MinQuoteReserve uint64
	Commitment      rpc.CommitmentType
}

// Filter recognises pool creations in the program log stream.
type Filter struct {
	chain  ChainReader
	cfg    Config
	logger *zap.Logger
}

// New validates the layout and builds a filter.
func New(chain ChainReader, cfg Config, logger *zap.Logger) (*Filter, error) {
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	return &Filter{chain: chain, cfg: cfg, logger: logger.Named("detector")}, nil
}

// MatchLogs runs the text-pattern strategy and the liquidity floor. It never touches the
// network.
func (f *Filter) MatchLogs(b domain.LogBatch) (domain.LiquiditySnapshot, bool) {
	if b.Failed() {
		return domain.LiquiditySnapshot{}, false
	}
	snap, ok := ParseLiquidityLog(b.Logs)
	if !ok {
		return snap, false
	}
	if snap.QuoteReserve() < f.cfg.MinQuoteReserve {
		f.logger.Debug("Pool below liquidity floor",
			zap.Stringer("signature", b.Signature),
			zap.Uint64("quote_reserve", snap.QuoteReserve()),
			zap.Uint64("floor", f.cfg.MinQuoteReserve))
		return snap, false
	}
	return snap, true
}

// Resolve fetches the transaction behind a matched batch and extracts pool and token
// identifiers. A nil event with nil error means the transaction did not fit the layout.
func (f *Filter) Resolve(ctx context.Context, b domain.LogBatch, snap domain.LiquiditySnapshot) (*domain.PoolCreationEvent, error) {
	tx, err := f.chain.GetTransaction(ctx, b.Signature, f.cfg.Commitment)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction %s: %w", ErrTransactionUnavailable, b.Signature, err)
	}

	var pool, tokenA, tokenB solana.PublicKey
	var ok bool
	switch f.cfg.Layout.Strategy {
	case StrategyInstruction:
		pool, tokenA, tokenB, ok, err = f.byInstruction(ctx, tx)
	default:
		pool, tokenA, tokenB, ok, err = f.byPosition(ctx, tx)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		f.logger.Debug("Transaction does not fit layout",
			zap.Stringer("signature", b.Signature),
			zap.String("layout", f.cfg.Layout.Name))
		return nil, nil
	}

	observed := b.ReceivedAt
	if observed.IsZero() {
		observed = time.Now()
	}
	return &domain.PoolCreationEvent{
		Signature:    b.Signature,
		Slot:         b.Slot,
		PoolID:       pool,
		TokenA:       tokenA,
		TokenB:       tokenB,
		QuoteReserve: snap.QuoteReserve(),
		ObservedAt:   observed,
	}, nil
}

// Inspect is MatchLogs followed by Resolve.
func (f *Filter) Inspect(ctx context.Context, b domain.LogBatch) (*domain.PoolCreationEvent, error) {
	snap, ok := f.MatchLogs(b)
	if !ok {
		return nil, nil
	}
	return f.Resolve(ctx, b, snap)
}

func (f *Filter) byPosition(ctx context.Context, tx *blockchain.FetchedTransaction) (pool, a, b solana.PublicKey, ok bool, err error) {
	keys := tx.StaticKeys()
	l := f.cfg.Layout

	var okPool, okA, okB bool
	pool, okPool = at(keys, l.PoolIndex)
	a, okA = at(keys, l.TokenAIndex)
	b, okB = at(keys, l.TokenBIndex)
	if !okPool || !okA || !okB || a.Equals(b) {
		return pool, a, b, false, nil
	}
	if !l.VerifyMints {
		return pool, a, b, true, nil
	}

	accounts, err := f.chain.GetMultipleAccounts(ctx, []solana.PublicKey{a, b})
	if err != nil {
		return pool, a, b, false, fmt.Errorf("%w: mint accounts: %w", ErrTransactionUnavailable, err)
	}
	if len(accounts) != 2 || !solbc.IsMintAccount(accounts[0]) || !solbc.IsMintAccount(accounts[1]) {
		f.logger.Debug("Positional accounts are not mints",
			zap.Stringer("token_a", a),
			zap.Stringer("token_b", b))
		return pool, a, b, false, nil
	}
	return pool, a, b, true, nil
}

func (f *Filter) byInstruction(ctx context.Context, tx *blockchain.FetchedTransaction) (pool, a, b solana.PublicKey, ok bool, err error) {
	keys := tx.AllKeys()
	static := tx.StaticKeys()

	var ixAccounts []solana.PublicKey
	for _, ix := range tx.Transaction.Message.Instructions {
		if int(ix.ProgramIDIndex) >= len(static) || !static[ix.ProgramIDIndex].Equals(f.cfg.Layout.ProgramID) {
			continue
		}
		ixAccounts = make([]solana.PublicKey, 0, len(ix.Accounts))
		for _, idx := range ix.Accounts {
			if int(idx) >= len(keys) {
				return pool, a, b, false, nil
			}
			ixAccounts = append(ixAccounts, keys[idx])
		}
		break
	}
	if ixAccounts == nil {
		return pool, a, b, false, nil
	}

	pool, ok = at(ixAccounts, f.cfg.Layout.PoolIndex)
	if !ok {
		return pool, a, b, false, nil
	}

	candidates := uniqueKeys(ixAccounts, pool)
	accounts, err := f.chain.GetMultipleAccounts(ctx, candidates)
	if err != nil {
		return pool, a, b, false, fmt.Errorf("%w: instruction accounts: %w", ErrTransactionUnavailable, err)
	}

	var mints []solana.PublicKey
	for i, acc := range accounts {
		if i < len(candidates) && solbc.IsMintAccount(acc) {
			mints = append(mints, candidates[i])
			if len(mints) == 2 {
				break
			}
		}
	}
	if len(mints) < 2 {
		return pool, a, b, false, nil
	}
	return pool, mints[0], mints[1], true, nil
}

// uniqueKeys returns keys in first-seen order without duplicates and without skip.
func uniqueKeys(keys []solana.PublicKey, skip solana.PublicKey) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{}, len(keys))
	out := make([]solana.PublicKey, 0, len(keys))
	for _, k := range keys {
		if k.Equals(skip) {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
