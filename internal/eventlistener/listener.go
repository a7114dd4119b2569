// internal/eventlistener/listener.go
package eventlistener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/metrics"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 30 * time.Second
	// сессия дольше этого считается стабильной и сбрасывает backoff
	stableAfter = time.Minute
	bufferSize  = 256
)

// Config describes the log subscription.
type Config struct {
	URL        string
	ProgramID  solana.PublicKey
	Commitment rpc.CommitmentType
	Buffer     int
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Listener keeps a logsSubscribe(mentions) open against the RPC node and reconnects when the
// stream drops.
type Listener struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewListener создает слушатель логов программы
func NewListener(cfg Config, logger *zap.Logger, m *metrics.Collector) (*Listener, error) {
	if cfg.URL == "" {
		return nil, errors.New("eventlistener: websocket url is required")
	}
	if cfg.ProgramID.IsZero() {
		return nil, errors.New("eventlistener: program id is required")
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = bufferSize
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = initialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = maxBackoff
	}
	return &Listener{cfg: cfg, logger: logger.Named("listener"), metrics: m}, nil
}

// Stream starts the subscription and returns batches in arrival order. The channel is closed
// after ctx is done.
func (l *Listener) Stream(ctx context.Context) <-chan domain.LogBatch {
	out := make(chan domain.LogBatch, l.cfg.Buffer)
	go l.run(ctx, out)
	return out
}

func (l *Listener) run(ctx context.Context, out chan<- domain.LogBatch) {
	defer close(out)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.cfg.MinBackoff
	policy.MaxInterval = l.cfg.MaxBackoff

	for {
		started := time.Now()
		err := l.session(ctx, out)
		if ctx.Err() != nil {
			l.logger.Info("Log stream stopped")
			return
		}
		if time.Since(started) > stableAfter {
			policy.Reset()
		}

		wait := policy.NextBackOff()
		l.metrics.Reconnect()
		l.logger.Warn("🔌 Log stream dropped, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", wait))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// session runs one connection until it fails or ctx is done.
func (l *Listener) session(ctx context.Context, out chan<- domain.LogBatch) error {
	client, err := ws.Connect(ctx, l.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Close()

	sub, err := client.LogsSubscribeMentions(l.cfg.ProgramID, l.cfg.Commitment)
	if err != nil {
		return fmt.Errorf("logsSubscribe: %w", err)
	}
	defer sub.Unsubscribe()

	l.logger.Info("📡 Subscribed to program logs",
		zap.String("program", l.cfg.ProgramID.String()),
		zap.String("commitment", string(l.cfg.Commitment)))

	for {
		res, err := sub.Recv(ctx)
		if err != nil {
			return fmt.Errorf("recv: %w", err)
		}
		if res == nil {
			continue
		}
		l.metrics.LogBatch()

		batch := domain.LogBatch{
			Signature:  res.Value.Signature,
			Slot:       res.Context.Slot,
			Logs:       res.Value.Logs,
			Err:        res.Value.Err,
			ReceivedAt: time.Now(),
		}
		select {
		case out <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
