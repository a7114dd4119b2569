// internal/storage/storagetest/storagetest.go
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/storage"
)

var (
	MintA = solana.MustPublicKeyFromBase58("3oZJ3UTQZUd7UyzhD84aTvKHjwgSdHBDYuoKynseibox")
	MintB = solana.MustPublicKeyFromBase58("C5goMuHK7Xreiu7CwrvTjzFX6H1NcTfxijnGgsHeibox")
	Pool  = solana.MustPublicKeyFromBase58("7YttLkHDoNj9wyDur5pM1ejNaAvT9X4eqaYcHQqtj2G5")
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Attempt builds a terminal attempt started offset after a fixed base time.
func Attempt(id string, mint solana.PublicKey, offset time.Duration, err error, txs ...solana.Signature) *domain.BuyAttempt {
	a := &domain.BuyAttempt{
		ID: id,
		Token: domain.EligibleToken{
			Mint:         mint,
			CounterAsset: solana.SolMint,
			PoolID:       Pool,
			Signature:    solana.Signature{9, 9, 9},
			QuoteReserve: 7_500_000_000,
		},
		Status:     domain.StatusQuoting,
		RetryCount: 2,
		StartedAt:  base.Add(offset),
		TxIDs:      txs,
		Confirmed:  len(txs),
	}
	a.Finish(err)
	a.FinishedAt = a.StartedAt.Add(1500 * time.Millisecond)
	return a
}

// Run exercises the AttemptStore contract against a fresh, empty store.
func Run(t *testing.T, store storage.AttemptStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("record and get", func(t *testing.T) {
		sig1, sig2 := solana.Signature{1}, solana.Signature{2}
		a := Attempt("ok-1", MintA, 0, nil, sig1, sig2)
		require.NoError(t, store.Record(ctx, a))

		got, err := store.Get(ctx, "ok-1")
		require.NoError(t, err)
		assert.Equal(t, MintA.String(), got.Mint)
		assert.Equal(t, Pool.String(), got.PoolID)
		assert.Equal(t, string(domain.StatusSucceeded), got.Status)
		assert.Equal(t, uint64(7_500_000_000), got.QuoteReserve)
		assert.Equal(t, 2, got.RetryCount)
		assert.Equal(t, []string{sig1.String(), sig2.String()}, got.TxIDs)
		assert.Equal(t, 2, got.Confirmed)
		assert.False(t, got.Partial)
		assert.Empty(t, got.Error)
		assert.True(t, a.StartedAt.Equal(got.StartedAt))
		assert.Equal(t, 1500*time.Millisecond, got.Duration())
	})

	t.Run("partial failure keeps error and flag", func(t *testing.T) {
		a := Attempt("partial-1", MintA, time.Minute, errors.New("confirm timeout"), solana.Signature{3})
		require.NoError(t, store.Record(ctx, a))

		got, err := store.Get(ctx, "partial-1")
		require.NoError(t, err)
		assert.Equal(t, string(domain.StatusFailed), got.Status)
		assert.True(t, got.Partial)
		assert.Equal(t, "confirm timeout", got.Error)
	})

	t.Run("duplicate id", func(t *testing.T) {
		err := store.Record(ctx, Attempt("ok-1", MintA, 0, nil))
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("running attempt rejected", func(t *testing.T) {
		a := domain.NewBuyAttempt(domain.EligibleToken{Mint: MintB})
		assert.ErrorIs(t, store.Record(ctx, a), storage.ErrNotTerminal)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		require.NoError(t, store.Record(ctx, Attempt("fail-b", MintB, 2*time.Minute, errors.New("route not found"))))

		byMint, err := store.ListByMint(ctx, MintA.String())
		require.NoError(t, err)
		require.Len(t, byMint, 2)
		assert.Equal(t, "ok-1", byMint[0].ID)
		assert.Equal(t, "partial-1", byMint[1].ID)

		recent, err := store.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "fail-b", recent[0].ID)
		assert.Equal(t, "partial-1", recent[1].ID)
		assert.Empty(t, recent[0].TxIDs)
	})
}
