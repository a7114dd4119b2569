// internal/executor/executor.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/cpmm-sniper/internal/blockchain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/events"
	"github.com/rovshanmuradov/cpmm-sniper/internal/guard"
	"github.com/rovshanmuradov/cpmm-sniper/internal/metrics"
	"github.com/rovshanmuradov/cpmm-sniper/internal/wallet"
)

// Guard scopes
const (
	ScopeToken  = "token"
	ScopeGlobal = "global"
)

// journalTimeout bounds the write of a finished attempt.
const journalTimeout = 5 * time.Second

// Quoter is the trade API surface the executor uses.
type Quoter interface {
	GetRoute(ctx context.Context, req raydium.RouteRequest) (*domain.QuoteRoute, error)
	PriorityFee(ctx context.Context) (domain.PriorityFeeEstimate, error)
	BuildSwap(ctx context.Context, req raydium.SwapRequest) ([][]byte, error)
}

// Chain is the chain client surface the executor uses.
type Chain interface {
	TokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) (map[solana.PublicKey]solana.PublicKey, error)
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error)
	WaitForTransactionConfirmation(ctx context.Context, sig solana.Signature, opts blockchain.ConfirmOptions) error
}

// Journal persists terminal attempts.
type Journal interface {
	Record(ctx context.Context, a *domain.BuyAttempt) error
}

// Config controls a buy.
type Config struct {
	// InputMint is the asset spent; wrapped SOL means the native balance is wrapped on the fly.
	InputMint      solana.PublicKey
	AmountLamports uint64
	SlippageBps    int
	FeeTier        domain.FeeTier
	AttemptTimeout time.Duration
	SkipPreflight  bool
	Commitment     rpc.CommitmentType
	ConfirmPoll    time.Duration
	ConfirmTimeout time.Duration
	GuardScope     string
}

// Deps collects optional collaborators. Nil fields are skipped.
type Deps struct {
	Seen    guard.SeenSet
	Journal Journal
	Events  events.Publisher
	Metrics *metrics.Collector
}

// Executor runs buy attempts: quote, build, sign, submit and confirm.
type Executor struct {
	cfg      Config
	chain    Chain
	quoter   Quoter
	wallet   *wallet.Wallet
	inflight *guard.InFlight
	deps     Deps
	logger   *zap.Logger
}

// New создает исполнитель. inflight может разделяться между исполнителями одного процесса.
func New(cfg Config, chain Chain, quoter Quoter, w *wallet.Wallet, inflight *guard.InFlight, deps Deps, logger *zap.Logger) (*Executor, error) {
	if w == nil {
		return nil, errors.New("executor: wallet is required")
	}
	if cfg.AmountLamports == 0 {
		return nil, errors.New("executor: buy amount must be positive")
	}
	if cfg.InputMint.IsZero() {
		cfg.InputMint = solana.SolMint
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 3 * time.Minute
	}
	if cfg.FeeTier == "" {
		cfg.FeeTier = domain.FeeTierHigh
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	switch cfg.GuardScope {
	case "":
		cfg.GuardScope = ScopeToken
	case ScopeToken, ScopeGlobal:
	default:
		return nil, fmt.Errorf("executor: unknown guard scope %q", cfg.GuardScope)
	}
	if inflight == nil {
		inflight = guard.NewInFlight()
	}
	return &Executor{
		cfg:      cfg,
		chain:    chain,
		quoter:   quoter,
		wallet:   w,
		inflight: inflight,
		deps:     deps,
		logger:   logger.Named("executor"),
	}, nil
}

func (e *Executor) guardKey(mint solana.PublicKey) string {
	if e.cfg.GuardScope == ScopeGlobal {
		return guard.GlobalKey
	}
	return mint.String()
}

// Buy runs one attempt for tok and returns the signature of the last confirmed transaction.
func (e *Executor) Buy(ctx context.Context, tok domain.EligibleToken) (solana.Signature, error) {
	release, ok := e.inflight.TryAcquire(e.guardKey(tok.Mint))
	if !ok {
		e.deps.Metrics.AttemptSkipped("in_flight")
		e.logger.Debug("Buy skipped, attempt in flight", zap.String("mint", tok.Mint.String()))
		return solana.Signature{}, ErrAlreadyInFlight
	}
	defer release()

	if e.deps.Seen != nil {
		bought, err := e.deps.Seen.Seen(ctx, guard.BoughtKey(tok.Mint.String()))
		if err != nil {
			// хранилище недоступно - покупаем, локальный guard все равно держит ключ
			e.logger.Warn("Bought-set lookup failed", zap.String("mint", tok.Mint.String()), zap.Error(err))
		} else if bought {
			e.deps.Metrics.AttemptSkipped("bought")
			return solana.Signature{}, ErrAlreadyBought
		}
	}

	attempt := domain.NewBuyAttempt(tok)
	logger := e.logger.With(
		zap.String("attempt_id", attempt.ID),
		zap.String("mint", tok.Mint.String()))
	e.deps.Metrics.AttemptStarted()
	logger.Info("🎯 Buy attempt started",
		zap.Uint64("amount_lamports", e.cfg.AmountLamports),
		zap.String("pool", tok.PoolID.String()))

	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	sig, err := e.run(attemptCtx, attempt, logger)
	cancel()

	attempt.Finish(err)
	e.finish(ctx, attempt, logger)
	return sig, err
}

func (e *Executor) finish(ctx context.Context, a *domain.BuyAttempt, logger *zap.Logger) {
	e.deps.Metrics.AttemptFinished(a)

	fields := []zap.Field{
		zap.String("status", string(a.Status)),
		zap.Int("retries", a.RetryCount),
		zap.Int("confirmed", a.Confirmed),
		zap.Duration("duration", a.Duration()),
	}
	switch {
	case a.Err == nil:
		logger.Info("✅ Buy confirmed", append(fields, zap.String("signature", a.LastTx().String()))...)
	case a.Partial():
		logger.Error("Buy stopped after partial execution", append(fields, zap.Error(a.Err))...)
	default:
		logger.Warn("Buy failed", append(fields, zap.Error(a.Err))...)
	}

	if a.Err == nil && e.deps.Seen != nil {
		if _, err := e.deps.Seen.Claim(context.WithoutCancel(ctx), guard.BoughtKey(a.Token.Mint.String())); err != nil {
			logger.Warn("Failed to mark token as bought", zap.Error(err))
		}
	}

	if e.deps.Journal != nil {
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
		if err := e.deps.Journal.Record(jctx, a); err != nil {
			logger.Warn("Failed to journal attempt", zap.Error(err))
		}
		cancel()
	}

	if e.deps.Events != nil {
		if err := e.deps.Events.Publish(events.NewAttemptFinished(a)); err != nil {
			logger.Debug("Attempt event dropped", zap.Error(err))
		}
	}
}

// holdings is the wallet state needed to build a swap.
type holdings struct {
	balance  uint64
	accounts map[solana.PublicKey]solana.PublicKey
	fee      domain.PriorityFeeEstimate
}

func (e *Executor) prepare(ctx context.Context) (*holdings, error) {
	h := &holdings{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bal, err := e.chain.GetBalance(gctx, e.wallet.PublicKey)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		h.balance = bal
		return nil
	})
	g.Go(func() error {
		accs, err := e.chain.TokenAccountsByOwner(gctx, e.wallet.PublicKey)
		if err != nil {
			return fmt.Errorf("token accounts: %w", err)
		}
		h.accounts = accs
		return nil
	})
	g.Go(func() error {
		fee, err := e.quoter.PriorityFee(gctx)
		if err != nil {
			return fmt.Errorf("priority fee: %w", err)
		}
		h.fee = fee
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return h, nil
}

func (e *Executor) run(ctx context.Context, a *domain.BuyAttempt, logger *zap.Logger) (solana.Signature, error) {
	fail := func(stage Stage, idx int, err error) (solana.Signature, error) {
		return a.LastTx(), &ExecutionError{
			AttemptID: a.ID,
			Stage:     stage,
			TxIndex:   idx,
			Partial:   a.Confirmed > 0,
			Err:       err,
		}
	}

	h, err := e.prepare(ctx)
	if err != nil {
		return fail(StagePrepare, -1, err)
	}

	inputIsSOL := e.cfg.InputMint.Equals(solana.SolMint)
	var inputAccount *solana.PublicKey
	if inputIsSOL {
		if h.balance < e.cfg.AmountLamports {
			return fail(StagePrepare, -1, fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, h.balance, e.cfg.AmountLamports))
		}
	} else {
		acc, ok := h.accounts[e.cfg.InputMint]
		if !ok {
			return fail(StagePrepare, -1, fmt.Errorf("%w: %s", ErrMissingHolding, e.cfg.InputMint))
		}
		inputAccount = &acc
	}
	var outputAccount *solana.PublicKey
	if acc, ok := h.accounts[a.Token.Mint]; ok {
		outputAccount = &acc
	}

	a.Status = domain.StatusQuoting
	route, err := e.quoter.GetRoute(ctx, raydium.RouteRequest{
		InputMint:   e.cfg.InputMint,
		OutputMint:  a.Token.Mint,
		Amount:      e.cfg.AmountLamports,
		SlippageBps: e.cfg.SlippageBps,
		OnRetry: func(int, time.Duration) {
			a.RetryCount++
			e.deps.Metrics.RouteRetry()
		},
		OnWaitForOpen: func(openAt time.Time) {
			a.Status = domain.StatusWaitingForOpen
			logger.Info("⏳ Waiting for pool open", zap.Time("open_at", openAt))
		},
	})
	if err != nil {
		return fail(StageQuote, -1, err)
	}
	a.Status = domain.StatusQuoting
	logger.Debug("Route received",
		zap.Uint64("out_amount", route.OutputAmount),
		zap.Uint64("min_out", route.OutputAmountMin),
		zap.Float64("price_impact_pct", route.PriceImpactPct))

	price := h.fee.Pick(e.cfg.FeeTier)
	raws, err := e.quoter.BuildSwap(ctx, raydium.SwapRequest{
		Route:            route.Payload,
		Wallet:           e.wallet.PublicKey,
		ComputeUnitPrice: price,
		WrapSol:          inputIsSOL,
		UnwrapSol:        a.Token.Mint.Equals(solana.SolMint),
		InputAccount:     inputAccount,
		OutputAccount:    outputAccount,
	})
	if err != nil {
		return fail(StageBuild, -1, err)
	}

	// транзакции маршрута строго по очереди: следующая только после подтверждения предыдущей
	for i, raw := range raws {
		tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
		if err != nil {
			return fail(StageDecode, i, err)
		}
		if err := e.wallet.SignTransaction(tx); err != nil {
			return fail(StageSign, i, err)
		}

		a.Status = domain.StatusSubmitting
		sig, err := e.chain.SendTransactionWithOpts(ctx, tx, blockchain.TransactionOptions{
			SkipPreflight:       e.cfg.SkipPreflight,
			PreflightCommitment: e.cfg.Commitment,
		})
		if err != nil {
			return fail(StageSubmit, i, err)
		}
		a.TxIDs = append(a.TxIDs, sig)
		logger.Info("📤 Transaction sent",
			zap.String("signature", sig.String()),
			zap.Int("index", i),
			zap.Int("total", len(raws)))

		a.Status = domain.StatusConfirming
		err = e.chain.WaitForTransactionConfirmation(ctx, sig, blockchain.ConfirmOptions{
			Commitment: e.cfg.Commitment,
			Interval:   e.cfg.ConfirmPoll,
			Timeout:    e.cfg.ConfirmTimeout,
		})
		e.deps.Metrics.Transaction(err == nil)
		if err != nil {
			return fail(StageConfirm, i, err)
		}
		a.Confirmed++
	}

	return a.LastTx(), nil
}
