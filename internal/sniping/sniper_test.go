package sniping

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rovshanmuradov/cpmm-sniper/internal/blockchain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/detector"
	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/eligibility"
	"github.com/rovshanmuradov/cpmm-sniper/internal/events"
	"github.com/rovshanmuradov/cpmm-sniper/internal/guard"
)

var (
	programID = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	boxMint   = solana.MustPublicKeyFromBase58("3oZJ3UTQZUd7UyzhD84aTvKHjwgSdHBDYuoKynseibox")
	plainMint = solana.MustPublicKeyFromBase58("3ARzQcG9pZThivnUe66ZmXvmefWRGNTq4RQgE8sgiboy")
)

var creationLogs = []string{
	"Program CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C invoke [1]",
	"Program log: liquidity:24494897427, vault_0_amount:60000000000, vault_1_amount:900000000000000",
	"Program log: Instruction: Burn",
}

// chanSource отдает заранее подготовленные батчи
type chanSource struct {
	ch chan domain.LogBatch
}

func (s *chanSource) Stream(context.Context) <-chan domain.LogBatch { return s.ch }

// fakeChain отдает транзакции по подписи
type fakeChain struct {
	mu      sync.Mutex
	txs     map[solana.Signature]*blockchain.FetchedTransaction
	fetches int
}

func (c *fakeChain) GetTransaction(_ context.Context, sig solana.Signature, _ rpc.CommitmentType) (*blockchain.FetchedTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches++
	tx, ok := c.txs[sig]
	if !ok {
		return nil, errors.New("transaction not found")
	}
	return tx, nil
}

func (c *fakeChain) GetMultipleAccounts(context.Context, []solana.PublicKey) ([]*rpc.Account, error) {
	return nil, errors.New("not used")
}

func (c *fakeChain) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

type fakeBuyer struct {
	mu     sync.Mutex
	tokens []domain.EligibleToken
	block  chan struct{}
}

func (b *fakeBuyer) Buy(ctx context.Context, tok domain.EligibleToken) (solana.Signature, error) {
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, tok)
	return solana.Signature{9}, nil
}

func (b *fakeBuyer) bought() []domain.EligibleToken {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.EligibleToken(nil), b.tokens...)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func poolTx(pool, tokenA, tokenB solana.PublicKey) *blockchain.FetchedTransaction {
	k := func() solana.PublicKey { return solana.NewWallet().PublicKey() }
	keys := []solana.PublicKey{k(), k(), pool, programID, tokenB, k(), k(), k(), tokenA}
	return &blockchain.FetchedTransaction{Transaction: &solana.Transaction{Message: solana.Message{AccountKeys: keys}}}
}

type fixture struct {
	source *chanSource
	chain  *fakeChain
	buyer  *fakeBuyer
	events *recorder
	sniper *Sniper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	layout := detector.DefaultLayout(programID)
	layout.VerifyMints = false

	f := &fixture{
		source: &chanSource{ch: make(chan domain.LogBatch, 16)},
		chain:  &fakeChain{txs: map[solana.Signature]*blockchain.FetchedTransaction{}},
		buyer:  &fakeBuyer{},
		events: &recorder{},
	}
	det, err := detector.New(f.chain, detector.Config{Layout: layout, MinQuoteReserve: 50 * domain.LamportsPerSOL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	gate := eligibility.NewGate(solana.SolMint, "ibox", true)
	f.sniper = NewSniper(f.source, det, gate, f.buyer, Deps{
		Seen:   guard.NewMemorySeenSet(time.Hour),
		Events: f.events,
	}, zaptest.NewLogger(t))
	return f
}

// runUntilDrained closes the source after the queued batches and waits for Run.
func (f *fixture) runUntilDrained(t *testing.T) {
	t.Helper()
	close(f.source.ch)
	err := f.sniper.Run(context.Background())
	assert.EqualError(t, err, "log stream closed")
}

func TestSniper_EndToEnd(t *testing.T) {
	f := newFixture(t)
	pool := solana.NewWallet().PublicKey()
	sig := solana.Signature{1}
	f.chain.txs[sig] = poolTx(pool, boxMint, solana.SolMint)

	f.source.ch <- domain.LogBatch{Signature: solana.Signature{7}, Logs: []string{"Program log: Instruction: Swap"}}
	f.source.ch <- domain.LogBatch{Signature: sig, Slot: 5, Logs: creationLogs, ReceivedAt: time.Now()}
	f.runUntilDrained(t)

	bought := f.buyer.bought()
	require.Len(t, bought, 1)
	assert.Equal(t, boxMint, bought[0].Mint)
	assert.Equal(t, solana.SolMint, bought[0].CounterAsset)
	assert.Equal(t, pool, bought[0].PoolID)
	assert.Equal(t, sig, bought[0].Signature)
	assert.Equal(t, uint64(60_000_000_000), bought[0].QuoteReserve)
	assert.Equal(t, 1, f.chain.fetchCount(), "non-matching batch is never fetched")

	require.Len(t, f.events.events, 1)
	assert.Equal(t, events.PoolDetected, f.events.events[0].Type())
}

func TestSniper_DuplicateReplay(t *testing.T) {
	f := newFixture(t)
	sig := solana.Signature{2}
	f.chain.txs[sig] = poolTx(solana.NewWallet().PublicKey(), solana.SolMint, boxMint)

	for i := 0; i < 5; i++ {
		f.source.ch <- domain.LogBatch{Signature: sig, Logs: creationLogs}
	}
	f.runUntilDrained(t)

	assert.Len(t, f.buyer.bought(), 1)
	assert.Equal(t, 1, f.chain.fetchCount())
}

func TestSniper_IneligibleAndBelowFloor(t *testing.T) {
	f := newFixture(t)
	ineligible := solana.Signature{3}
	f.chain.txs[ineligible] = poolTx(solana.NewWallet().PublicKey(), plainMint, solana.SolMint)

	small := []string{
		"Program log: liquidity:1, vault_0_amount:1000000000, vault_1_amount:900000000000000",
		"Program log: Instruction: Burn",
	}
	f.source.ch <- domain.LogBatch{Signature: ineligible, Logs: creationLogs}
	f.source.ch <- domain.LogBatch{Signature: solana.Signature{4}, Logs: small}
	f.runUntilDrained(t)

	assert.Empty(t, f.buyer.bought())
	assert.Equal(t, 1, f.chain.fetchCount())
}

func TestSniper_FetchErrorDropsEvent(t *testing.T) {
	f := newFixture(t)
	ok := solana.Signature{6}
	f.chain.txs[ok] = poolTx(solana.NewWallet().PublicKey(), boxMint, solana.SolMint)

	f.source.ch <- domain.LogBatch{Signature: solana.Signature{5}, Logs: creationLogs}
	f.source.ch <- domain.LogBatch{Signature: ok, Logs: creationLogs}
	f.runUntilDrained(t)

	bought := f.buyer.bought()
	require.Len(t, bought, 1)
	assert.Equal(t, ok, bought[0].Signature)
}

func TestSniper_ShutdownWaitsForAttempts(t *testing.T) {
	f := newFixture(t)
	f.buyer.block = make(chan struct{})
	sig := solana.Signature{8}
	f.chain.txs[sig] = poolTx(solana.NewWallet().PublicKey(), boxMint, solana.SolMint)
	f.source.ch <- domain.LogBatch{Signature: sig, Logs: creationLogs}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sniper.Run(ctx) }()

	require.Eventually(t, func() bool { return f.chain.fetchCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned before the attempt finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.buyer.block)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Len(t, f.buyer.bought(), 1)
}

// slowSeenSet висит до отмены контекста
type slowSeenSet struct{}

func (slowSeenSet) Claim(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func (slowSeenSet) Seen(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestSniper_SlowSeenSetDoesNotStallStream(t *testing.T) {
	f := newFixture(t)
	f.sniper.deps.Seen = slowSeenSet{}
	f.sniper.claimTimeout = 20 * time.Millisecond

	sig := solana.Signature{9}
	f.chain.txs[sig] = poolTx(solana.NewWallet().PublicKey(), boxMint, solana.SolMint)
	f.source.ch <- domain.LogBatch{Signature: sig, Logs: creationLogs}

	start := time.Now()
	f.runUntilDrained(t)

	assert.Less(t, time.Since(start), 2*time.Second)
	bought := f.buyer.bought()
	require.Len(t, bought, 1, "seen-set timeout falls back to processing")
	assert.Equal(t, sig, bought[0].Signature)
}

func TestSniper_RunLogsNoStartBanner(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.InfoLevel)
	f.sniper.logger = zap.New(core)

	f.runUntilDrained(t)

	assert.Zero(t, logs.FilterMessage("🚀 Sniper started").Len(), "start banner belongs to the runner")
}
