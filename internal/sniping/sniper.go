// internal/sniping/sniper.go
package sniping

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/cpmm-sniper/internal/detector"
	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/events"
	"github.com/rovshanmuradov/cpmm-sniper/internal/executor"
	"github.com/rovshanmuradov/cpmm-sniper/internal/guard"
	"github.com/rovshanmuradov/cpmm-sniper/internal/metrics"
)

const (
	defaultResolveTimeout = 15 * time.Second
	// Claim идет на горячем пути чтения потока
	defaultClaimTimeout = 250 * time.Millisecond
)

// Source delivers program log batches in arrival order.
type Source interface {
	Stream(ctx context.Context) <-chan domain.LogBatch
}

// Detector recognises pool creations.
type Detector interface {
	MatchLogs(b domain.LogBatch) (domain.LiquiditySnapshot, bool)
	Resolve(ctx context.Context, b domain.LogBatch, snap domain.LiquiditySnapshot) (*domain.PoolCreationEvent, error)
}

// Gate selects the token to buy from a pool.
type Gate interface {
	Evaluate(ev domain.PoolCreationEvent) (domain.EligibleToken, bool)
}

// Buyer executes a buy attempt.
type Buyer interface {
	Buy(ctx context.Context, tok domain.EligibleToken) (solana.Signature, error)
}

// Deps collects optional collaborators.
type Deps struct {
	Seen    guard.SeenSet
	Events  events.Publisher
	Metrics *metrics.Collector
}

// Sniper reads the log stream and turns matching pool creations into buy attempts.
type Sniper struct {
	source         Source
	detector       Detector
	gate           Gate
	buyer          Buyer
	deps           Deps
	logger         *zap.Logger
	resolveTimeout time.Duration
	claimTimeout   time.Duration

	wg sync.WaitGroup
}

func NewSniper(source Source, det Detector, gate Gate, buyer Buyer, deps Deps, logger *zap.Logger) *Sniper {
	if deps.Seen == nil {
		deps.Seen = guard.NewMemorySeenSet(time.Hour)
	}
	return &Sniper{
		source:         source,
		detector:       det,
		gate:           gate,
		buyer:          buyer,
		deps:           deps,
		logger:         logger.Named("sniper"),
		resolveTimeout: defaultResolveTimeout,
		claimTimeout:   defaultClaimTimeout,
	}
}

// Run consumes the stream until it closes or ctx is done, then waits for dispatched
// attempts to finish.
func (s *Sniper) Run(ctx context.Context) error {
	defer s.wg.Wait()

	stream := s.source.Stream(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sniper stopping, waiting for running attempts")
			return nil
		case b, ok := <-stream:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("log stream closed")
			}
			s.handle(ctx, b)
		}
	}
}

// handle runs the cheap checks inline and hands the candidate to a goroutine.
func (s *Sniper) handle(ctx context.Context, b domain.LogBatch) {
	snap, ok := s.detector.MatchLogs(b)
	if !ok {
		return
	}
	s.deps.Metrics.Candidate(metrics.StageMatched)

	cctx, cancel := context.WithTimeout(ctx, s.claimTimeout)
	fresh, err := s.deps.Seen.Claim(cctx, guard.SignatureKey(b.Signature.String()))
	cancel()
	if err != nil {
		s.logger.Warn("Seen-set unavailable, processing anyway",
			zap.String("signature", b.Signature.String()), zap.Error(err))
	} else if !fresh {
		s.deps.Metrics.Candidate(metrics.StageDuplicate)
		s.logger.Debug("Duplicate signature skipped", zap.String("signature", b.Signature.String()))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.process(context.WithoutCancel(ctx), b, snap)
	}()
}

func (s *Sniper) process(ctx context.Context, b domain.LogBatch, snap domain.LiquiditySnapshot) {
	logger := s.logger.With(zap.String("signature", b.Signature.String()))

	rctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
	ev, err := s.detector.Resolve(rctx, b, snap)
	cancel()
	if err != nil {
		s.deps.Metrics.Candidate(metrics.StageFetchError)
		if errors.Is(err, detector.ErrTransactionUnavailable) {
			logger.Warn("Pool transaction unavailable, dropping", zap.Error(err))
		} else {
			logger.Error("Failed to resolve pool", zap.Error(err))
		}
		return
	}
	if ev == nil {
		s.deps.Metrics.Candidate(metrics.StageNoLayout)
		return
	}

	tok, ok := s.gate.Evaluate(*ev)
	if !ok {
		s.deps.Metrics.Candidate(metrics.StageIneligible)
		logger.Debug("Pool not eligible",
			zap.String("token_a", ev.TokenA.String()),
			zap.String("token_b", ev.TokenB.String()))
		return
	}
	s.deps.Metrics.Candidate(metrics.StageEligible)

	logger.Info("🆕 Eligible pool detected",
		zap.String("mint", tok.Mint.String()),
		zap.String("pool", tok.PoolID.String()),
		zap.Uint64("quote_reserve", tok.QuoteReserve),
		zap.Duration("detect_latency", time.Since(ev.ObservedAt)))
	if s.deps.Events != nil {
		if err := s.deps.Events.Publish(events.NewPoolDetected(tok)); err != nil {
			logger.Debug("Pool event dropped", zap.Error(err))
		}
	}

	if _, err := s.buyer.Buy(ctx, tok); err != nil {
		switch {
		case errors.Is(err, executor.ErrAlreadyInFlight), errors.Is(err, executor.ErrAlreadyBought):
			logger.Info("Buy skipped", zap.String("mint", tok.Mint.String()), zap.Error(err))
		default:
			// результат уже залогирован исполнителем
			logger.Debug("Buy attempt ended with error", zap.Error(err))
		}
	}
}
