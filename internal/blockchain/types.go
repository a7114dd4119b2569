// internal/blockchain/types.go
package blockchain

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// ConfirmOptions bounds confirmation polling.
type ConfirmOptions struct {
	Commitment rpc.CommitmentType
	Interval   time.Duration
	Timeout    time.Duration
}

// FetchedTransaction is a transaction body together with the addresses it loaded from lookup
// tables, so instruction account indexes can be resolved.
type FetchedTransaction struct {
	Slot           uint64
	Transaction    *solana.Transaction
	LoadedWritable []solana.PublicKey
	LoadedReadonly []solana.PublicKey
}

// StaticKeys returns the account keys embedded in the message.
func (t *FetchedTransaction) StaticKeys() []solana.PublicKey {
	return t.Transaction.Message.AccountKeys
}

// AllKeys returns static keys followed by loaded writable then readonly addresses, the order
// instruction account indexes refer to.
func (t *FetchedTransaction) AllKeys() []solana.PublicKey {
	static := t.StaticKeys()
	keys := make([]solana.PublicKey, 0, len(static)+len(t.LoadedWritable)+len(t.LoadedReadonly))
	keys = append(keys, static...)
	keys = append(keys, t.LoadedWritable...)
	return append(keys, t.LoadedReadonly...)
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
type Client interface {
	// Получить транзакцию по подписи.
	GetTransaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (*FetchedTransaction, error)
	// Получить аккаунты; отсутствующие возвращаются как nil.
	GetMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*rpc.Account, error)
	// Токен-аккаунты владельца по mint (SPL Token и Token-2022).
	TokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) (map[solana.PublicKey]solana.PublicKey, error)
	// Получить баланс аккаунта.
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
	// Отправить транзакцию с опциями.
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts TransactionOptions) (solana.Signature, error)
	// Ожидание подтверждения транзакции.
	WaitForTransactionConfirmation(ctx context.Context, sig solana.Signature, opts ConfirmOptions) error
}
