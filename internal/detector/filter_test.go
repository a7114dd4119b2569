package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/cpmm-sniper/internal/blockchain"
	"github.com/rovshanmuradov/cpmm-sniper/internal/blockchain/solbc"
	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
)

var (
	programID = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	wsol      = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	iboxMint  = solana.MustPublicKeyFromBase58("3oZJ3UTQZUd7UyzhD84aTvKHjwgSdHBDYuoKynseibox")
)

type mockChain struct {
	mock.Mock
}

func (m *mockChain) GetTransaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (*blockchain.FetchedTransaction, error) {
	args := m.Called(ctx, sig, commitment)
	tx, _ := args.Get(0).(*blockchain.FetchedTransaction)
	return tx, args.Error(1)
}

func (m *mockChain) GetMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*rpc.Account, error) {
	args := m.Called(ctx, keys)
	accs, _ := args.Get(0).([]*rpc.Account)
	return accs, args.Error(1)
}

func mintAccount() *rpc.Account {
	return &rpc.Account{Owner: solana.TokenProgramID, Data: rpc.DataBytesOrJSONFromBytes(make([]byte, 82))}
}

func plainAccount(owner solana.PublicKey, size int) *rpc.Account {
	return &rpc.Account{Owner: owner, Data: rpc.DataBytesOrJSONFromBytes(make([]byte, size))}
}

func key() solana.PublicKey { return solana.NewWallet().PublicKey() }

func creationLogs() []string {
	return []string{
		"Program CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C invoke [1]",
		"Program log: Instruction: Initialize",
		"Program log: liquidity:24494897427, vault_0_amount:5000000000, vault_1_amount:120000000000",
		"Program log: Instruction: Burn",
	}
}

// positionalTx lays out static keys so pool sits at index 2, the subject mint last and WSOL
// fifth from the end.
func positionalTx(pool, tokenA, tokenB solana.PublicKey) *blockchain.FetchedTransaction {
	keys := []solana.PublicKey{key(), key(), pool, programID, tokenB, key(), key(), key(), tokenA}
	return &blockchain.FetchedTransaction{
		Slot:        42,
		Transaction: &solana.Transaction{Message: solana.Message{AccountKeys: keys}},
	}
}

func newFilter(t *testing.T, chain ChainReader, layout Layout, floor uint64) *Filter {
	t.Helper()
	f, err := New(chain, Config{Layout: layout, MinQuoteReserve: floor}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return f
}

func TestInspect_NoMarkersNoFetch(t *testing.T) {
	chain := &mockChain{}
	f := newFilter(t, chain, DefaultLayout(programID), 0)

	batches := [][]string{
		{"Program log: Instruction: Swap"},
		{"Program log: liquidity:1, vault_0_amount:1, vault_1_amount:2"},
		{"Program log: Instruction: Burn"},
	}
	for _, logs := range batches {
		ev, err := f.Inspect(context.Background(), domain.LogBatch{Signature: solana.Signature{1}, Logs: logs})
		assert.NoError(t, err)
		assert.Nil(t, ev)
	}
	chain.AssertNotCalled(t, "GetTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestInspect_FailedTransactionSkipped(t *testing.T) {
	chain := &mockChain{}
	f := newFilter(t, chain, DefaultLayout(programID), 0)

	ev, err := f.Inspect(context.Background(), domain.LogBatch{Logs: creationLogs(), Err: map[string]interface{}{"InstructionError": 1}})
	assert.NoError(t, err)
	assert.Nil(t, ev)
	chain.AssertNotCalled(t, "GetTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestInspect_BelowFloorNoFetch(t *testing.T) {
	chain := &mockChain{}
	f := newFilter(t, chain, DefaultLayout(programID), 50*domain.LamportsPerSOL)

	ev, err := f.Inspect(context.Background(), domain.LogBatch{Logs: creationLogs()})
	assert.NoError(t, err)
	assert.Nil(t, ev)
	chain.AssertNotCalled(t, "GetTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestInspect_PositionalMatch(t *testing.T) {
	pool := key()
	sig := solana.Signature{7}
	chain := &mockChain{}
	chain.On("GetTransaction", mock.Anything, sig, rpc.CommitmentConfirmed).Return(positionalTx(pool, iboxMint, wsol), nil)
	chain.On("GetMultipleAccounts", mock.Anything, []solana.PublicKey{iboxMint, wsol}).Return([]*rpc.Account{mintAccount(), mintAccount()}, nil)

	f := newFilter(t, chain, DefaultLayout(programID), 1*domain.LamportsPerSOL)
	ev, err := f.Inspect(context.Background(), domain.LogBatch{Signature: sig, Slot: 42, Logs: creationLogs()})
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, pool, ev.PoolID)
	assert.Equal(t, iboxMint, ev.TokenA)
	assert.Equal(t, wsol, ev.TokenB)
	assert.Equal(t, uint64(5_000_000_000), ev.QuoteReserve)
	assert.False(t, ev.ObservedAt.IsZero())
	chain.AssertExpectations(t)
}

func TestInspect_PositionalRejectsNonMints(t *testing.T) {
	sig := solana.Signature{8}
	chain := &mockChain{}
	chain.On("GetTransaction", mock.Anything, sig, rpc.CommitmentConfirmed).Return(positionalTx(key(), iboxMint, wsol), nil)
	chain.On("GetMultipleAccounts", mock.Anything, mock.Anything).
		Return([]*rpc.Account{mintAccount(), plainAccount(solana.TokenProgramID, 165)}, nil)

	f := newFilter(t, chain, DefaultLayout(programID), 0)
	ev, err := f.Inspect(context.Background(), domain.LogBatch{Signature: sig, Logs: creationLogs()})
	assert.NoError(t, err)
	assert.Nil(t, ev)
}

func TestInspect_PositionalWithoutVerification(t *testing.T) {
	sig := solana.Signature{9}
	chain := &mockChain{}
	chain.On("GetTransaction", mock.Anything, sig, rpc.CommitmentConfirmed).Return(positionalTx(key(), iboxMint, wsol), nil)

	layout := DefaultLayout(programID)
	layout.VerifyMints = false
	f := newFilter(t, chain, layout, 0)

	ev, err := f.Inspect(context.Background(), domain.LogBatch{Signature: sig, Logs: creationLogs()})
	require.NoError(t, err)
	require.NotNil(t, ev)
	chain.AssertNotCalled(t, "GetMultipleAccounts", mock.Anything, mock.Anything)
}

func TestInspect_ShortAccountList(t *testing.T) {
	sig := solana.Signature{10}
	chain := &mockChain{}
	chain.On("GetTransaction", mock.Anything, sig, rpc.CommitmentConfirmed).Return(&blockchain.FetchedTransaction{
		Transaction: &solana.Transaction{Message: solana.Message{AccountKeys: []solana.PublicKey{key(), key()}}},
	}, nil)

	f := newFilter(t, chain, DefaultLayout(programID), 0)
	ev, err := f.Inspect(context.Background(), domain.LogBatch{Signature: sig, Logs: creationLogs()})
	assert.NoError(t, err)
	assert.Nil(t, ev)
}

func TestInspect_FetchErrorIsInfrastructure(t *testing.T) {
	sig := solana.Signature{11}
	chain := &mockChain{}
	chain.On("GetTransaction", mock.Anything, sig, rpc.CommitmentConfirmed).Return(nil, errors.New("429 too many requests"))

	f := newFilter(t, chain, DefaultLayout(programID), 0)
	ev, err := f.Inspect(context.Background(), domain.LogBatch{Signature: sig, Logs: creationLogs()})
	assert.Nil(t, ev)
	assert.ErrorIs(t, err, ErrTransactionUnavailable)
}

func TestInspect_InstructionStrategy(t *testing.T) {
	creator, config, authority, pool := key(), key(), key(), key()
	lpMint, lookupVault := key(), key()
	static := []solana.PublicKey{creator, config, authority, pool, wsol, iboxMint, lpMint, programID, solana.TokenProgramID}
	tx := &blockchain.FetchedTransaction{
		Transaction: &solana.Transaction{Message: solana.Message{
			AccountKeys: static,
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 8, Accounts: []uint16{0, 1}},
				{ProgramIDIndex: 7, Accounts: []uint16{0, 1, 2, 3, 4, 5, 6, 9}},
			},
		}},
		LoadedWritable: []solana.PublicKey{lookupVault},
	}

	sig := solana.Signature{12}
	chain := &mockChain{}
	chain.On("GetTransaction", mock.Anything, sig, rpc.CommitmentConfirmed).Return(tx, nil)
	// Candidates exclude the pool and keep instruction order.
	chain.On("GetMultipleAccounts", mock.Anything, []solana.PublicKey{creator, config, authority, wsol, iboxMint, lpMint, lookupVault}).
		Return([]*rpc.Account{
			plainAccount(solana.SystemProgramID, 0),
			plainAccount(programID, 236),
			nil,
			mintAccount(),
			{Owner: solbc.Token2022ProgramID, Data: rpc.DataBytesOrJSONFromBytes(make([]byte, 82))},
			mintAccount(),
			plainAccount(solana.TokenProgramID, 165),
		}, nil)

	layout := DefaultLayout(programID)
	layout.Strategy = StrategyInstruction
	layout.PoolIndex = 3
	f := newFilter(t, chain, layout, 0)

	ev, err := f.Inspect(context.Background(), domain.LogBatch{Signature: sig, Logs: creationLogs()})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, pool, ev.PoolID)
	assert.Equal(t, wsol, ev.TokenA)
	assert.Equal(t, iboxMint, ev.TokenB)
	chain.AssertExpectations(t)
}

func TestInspect_InstructionStrategyProgramAbsent(t *testing.T) {
	sig := solana.Signature{13}
	chain := &mockChain{}
	chain.On("GetTransaction", mock.Anything, sig, rpc.CommitmentConfirmed).Return(positionalTx(key(), iboxMint, wsol), nil)

	layout := DefaultLayout(programID)
	layout.Strategy = StrategyInstruction
	f := newFilter(t, chain, layout, 0)

	ev, err := f.Inspect(context.Background(), domain.LogBatch{Signature: sig, Logs: creationLogs()})
	assert.NoError(t, err)
	assert.Nil(t, ev)
}

func TestLayoutValidate(t *testing.T) {
	l := DefaultLayout(programID)
	assert.NoError(t, l.Validate())

	l.TokenBIndex = l.TokenAIndex
	assert.Error(t, l.Validate())

	l = DefaultLayout(solana.PublicKey{})
	assert.Error(t, l.Validate())

	l = DefaultLayout(programID)
	l.Strategy = "guess"
	assert.Error(t, l.Validate())
}
