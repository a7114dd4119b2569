// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/cpmm-sniper/internal/blockchain/solbc"
	"github.com/rovshanmuradov/cpmm-sniper/internal/config"
	"github.com/rovshanmuradov/cpmm-sniper/internal/detector"
	"github.com/rovshanmuradov/cpmm-sniper/internal/dex/raydium"
	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/eligibility"
	"github.com/rovshanmuradov/cpmm-sniper/internal/eventlistener"
	"github.com/rovshanmuradov/cpmm-sniper/internal/events"
	"github.com/rovshanmuradov/cpmm-sniper/internal/executor"
	"github.com/rovshanmuradov/cpmm-sniper/internal/guard"
	"github.com/rovshanmuradov/cpmm-sniper/internal/metrics"
	"github.com/rovshanmuradov/cpmm-sniper/internal/notify"
	"github.com/rovshanmuradov/cpmm-sniper/internal/sniping"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage"
	"github.com/rovshanmuradov/cpmm-sniper/internal/wallet"
)

const (
	eventBusBuffer  = 256
	notifyTimeout   = 15 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Runner wires the pipeline from configuration and owns every long-lived service.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	shutdown *ShutdownHandler

	metrics  *metrics.Collector
	bus      *events.Bus
	chain    *solbc.Client
	journal  storage.AttemptStore
	seen     guard.SeenSet
	counter  solana.PublicKey
	executor *executor.Executor
}

// NewRunner NewRunner: принимает cfg и logger
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		logger:   logger,
		shutdown: NewShutdownHandler(logger, shutdownTimeout),
	}
}

// Initialize builds the services shared by the sniping loop and manual buys.
func (r *Runner) Initialize(ctx context.Context) error {
	cfg := r.cfg

	w, err := wallet.Resolve(cfg.PrivateKey, cfg.WalletsFile, cfg.WalletName)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	r.logger.Info("👛 Wallet loaded", zap.String("address", w.PublicKey.String()))

	r.counter, err = solana.PublicKeyFromBase58(cfg.Eligibility.CounterAsset)
	if err != nil {
		return fmt.Errorf("eligibility.counter_asset: %w", err)
	}
	tier, err := domain.ParseFeeTier(cfg.Raydium.FeeTier)
	if err != nil {
		return fmt.Errorf("raydium.fee_tier: %w", err)
	}

	r.metrics = metrics.NewCollector(nil)
	r.bus = events.NewBus(r.logger, eventBusBuffer, notifyTimeout)
	r.shutdown.Add("event_bus", r.bus)

	if cfg.Telegram.Enabled() {
		tg, err := notify.NewTelegram(cfg.Telegram.APIBase, cfg.Telegram.BotToken, cfg.Telegram.ChatID, r.logger)
		if err != nil {
			return err
		}
		tg.Register(r.bus)
		r.logger.Info("📨 Telegram notifications enabled")
	}

	r.chain = solbc.NewClient(cfg.RPCURL, r.logger)
	r.shutdown.Add("rpc_client", r.chain)
	r.logger.Info("🔗 RPC client ready", zap.String("rpc", config.MaskURL(cfg.RPCURL)))

	journal, backend, err := openJournal(ctx, cfg.Journal.DSN, r.logger)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	r.journal = journal
	r.shutdown.Add("journal", journal)
	r.logger.Info("🗄 Journal opened", zap.String("backend", backend))

	if err := r.initSeenSet(ctx); err != nil {
		return err
	}

	quoter := raydium.NewClient(raydium.Config{
		SwapHost:        cfg.Raydium.SwapHost,
		BaseHost:        cfg.Raydium.BaseHost,
		PriorityFeePath: cfg.Raydium.PriorityFeePath,
		TxVersion:       cfg.Raydium.TxVersion,
		MaxRouteRetries: cfg.Raydium.MaxRouteRetries,
		RouteRetryDelay: cfg.Raydium.RouteRetryDelay,
		HTTPTimeout:     cfg.Raydium.HTTPTimeout,
	}, r.logger)

	r.executor, err = executor.New(executor.Config{
		InputMint:      r.counter,
		AmountLamports: cfg.BuyAmountLamports,
		SlippageBps:    cfg.SlippageBps,
		FeeTier:        tier,
		AttemptTimeout: cfg.Execution.AttemptTimeout,
		SkipPreflight:  cfg.Execution.SkipPreflight,
		Commitment:     rpc.CommitmentType(cfg.Commitment),
		ConfirmPoll:    cfg.Execution.ConfirmPoll,
		ConfirmTimeout: cfg.Execution.ConfirmTimeout,
		GuardScope:     cfg.Execution.GuardScope,
	}, r.chain, quoter, w, guard.NewInFlight(), executor.Deps{
		Seen:    r.seen,
		Journal: r.journal,
		Events:  r.bus,
		Metrics: r.metrics,
	}, r.logger)
	if err != nil {
		return err
	}
	return nil
}

// initSeenSet uses Redis when configured so several instances share claims.
func (r *Runner) initSeenSet(ctx context.Context) error {
	rc := r.cfg.Redis
	if rc.Addr == "" {
		r.seen = guard.NewMemorySeenSet(rc.SeenTTL)
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	seen := guard.NewRedisSeenSet(client, rc.Prefix, rc.SeenTTL)
	if err := seen.Ping(ctx); err != nil {
		_ = seen.Close()
		return fmt.Errorf("redis %s: %w", rc.Addr, err)
	}
	r.seen = seen
	r.shutdown.Add("redis", seen)
	r.logger.Info("🧷 Shared seen-set on redis", zap.String("addr", rc.Addr))
	return nil
}

func (r *Runner) layout() (detector.Layout, error) {
	lc := r.cfg.Layout
	programID, err := solana.PublicKeyFromBase58(lc.ProgramID)
	if err != nil {
		return detector.Layout{}, fmt.Errorf("layout.program_id: %w", err)
	}
	return detector.Layout{
		Name:        lc.Name,
		ProgramID:   programID,
		Strategy:    detector.Strategy(lc.Strategy),
		PoolIndex:   lc.PoolIndex,
		TokenAIndex: lc.TokenAIndex,
		TokenBIndex: lc.TokenBIndex,
		VerifyMints: lc.VerifyMints,
	}, nil
}

// Run listens for pool creations until SIGINT/SIGTERM or ctx is done, then drains in-flight
// attempts.
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	layout, err := r.layout()
	if err != nil {
		return err
	}
	commitment := rpc.CommitmentType(r.cfg.Commitment)

	filter, err := detector.New(r.chain, detector.Config{
		Layout:          layout,
		MinQuoteReserve: r.cfg.MinLiquidityLamports,
		Commitment:      commitment,
	}, r.logger)
	if err != nil {
		return err
	}
	gate := eligibility.NewGate(r.counter, r.cfg.Eligibility.BrandSuffix, r.cfg.Eligibility.RequireSuffix)

	listener, err := eventlistener.NewListener(eventlistener.Config{
		URL:        r.cfg.WSURL,
		ProgramID:  layout.ProgramID,
		Commitment: commitment,
	}, r.logger, r.metrics)
	if err != nil {
		return err
	}

	if addr, err := metrics.Serve(ctx, r.cfg.MetricsAddr, r.metrics, r.logger); err != nil {
		return fmt.Errorf("metrics server: %w", err)
	} else if addr != "" {
		r.logger.Info("📈 Metrics server listening", zap.String("addr", addr))
	}

	sniper := sniping.NewSniper(listener, filter, gate, r.executor, sniping.Deps{
		Seen:    r.seen,
		Events:  r.bus,
		Metrics: r.metrics,
	}, r.logger)

	r.logger.Info("🚀 Sniper started",
		zap.String("ws", config.MaskURL(r.cfg.WSURL)),
		zap.String("program", layout.ProgramID.String()),
		zap.String("layout", layout.Name),
		zap.String("min_liquidity_sol", config.LamportsToSOL(r.cfg.MinLiquidityLamports, 2)),
		zap.String("buy_amount_sol", config.LamportsToSOL(r.cfg.BuyAmountLamports, 4)))

	err = sniper.Run(ctx)
	if ctx.Err() != nil {
		r.logger.Info("📡 Shutdown requested, in-flight attempts drained")
	}
	return err
}

// BuyOnce buys mint directly, bypassing detection and eligibility but not the guard or
// the journal.
func (r *Runner) BuyOnce(ctx context.Context, mint solana.PublicKey) (solana.Signature, error) {
	if r.executor == nil {
		return solana.Signature{}, errors.New("runner is not initialized")
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r.logger.Info("🎯 Manual buy", zap.String("mint", mint.String()))
	return r.executor.Buy(ctx, domain.EligibleToken{
		Mint:         mint,
		CounterAsset: r.counter,
	})
}

// Journal exposes the attempt store for reporting.
func (r *Runner) Journal() storage.AttemptStore {
	return r.journal
}

// Shutdown closes services and flushes the logger.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.logger.Info("👋 Bot shutting down gracefully")
	return r.shutdown.Shutdown(ctx)
}
