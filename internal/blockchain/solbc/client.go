// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/cpmm-sniper/internal/blockchain"
)

var (
	// Token2022ProgramID is the SPL Token-2022 program.
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

	// TokenPrograms lists programs that may own a mint.
	TokenPrograms = []solana.PublicKey{solana.TokenProgramID, Token2022ProgramID}
)

const (
	// splMintSize is the size of a legacy mint account.
	splMintSize = 82
	// token2022AccountTypeOffset is where Token-2022 stores the account type for extended accounts.
	token2022AccountTypeOffset = 165
	token2022AccountTypeMint   = 1
	// getMultipleAccounts accepts at most 100 keys per call.
	maxAccountsPerCall = 100
)

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc    *rpc.Client
	logger *zap.Logger
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:    rpc.New(rpcURL),
		logger: logger.Named("solbc-client"),
	}
}

// GetTransaction получает транзакцию с поддержкой versioned-сообщений.
func (c *Client) GetTransaction(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) (*blockchain.FetchedTransaction, error) {
	maxVersion := uint64(0)
	res, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		c.logger.Debug("GetTransaction error", zap.Stringer("signature", sig), zap.Error(err))
		return nil, &RPCError{Method: "getTransaction", Err: err}
	}
	if res == nil || res.Transaction == nil {
		return nil, &RPCError{Method: "getTransaction", Err: ErrNotFound}
	}

	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", sig, err)
	}

	fetched := &blockchain.FetchedTransaction{Slot: res.Slot, Transaction: tx}
	if res.Meta != nil {
		fetched.LoadedWritable = res.Meta.LoadedAddresses.Writable
		fetched.LoadedReadonly = res.Meta.LoadedAddresses.ReadOnly
	}
	return fetched, nil
}

// GetMultipleAccounts получает информацию о нескольких аккаунтах, разбивая запрос на пачки.
func (c *Client) GetMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*rpc.Account, error) {
	out := make([]*rpc.Account, 0, len(keys))
	for start := 0; start < len(keys); start += maxAccountsPerCall {
		end := min(start+maxAccountsPerCall, len(keys))
		res, err := c.rpc.GetMultipleAccountsWithOpts(ctx, keys[start:end], &rpc.GetMultipleAccountsOpts{
			Commitment: rpc.CommitmentConfirmed,
			Encoding:   solana.EncodingBase64,
		})
		if err != nil {
			c.logger.Debug("GetMultipleAccounts error", zap.Int("keys", end-start), zap.Error(err))
			return nil, &RPCError{Method: "getMultipleAccounts", Err: err}
		}
		out = append(out, res.Value...)
	}
	return out, nil
}

// TokenAccountsByOwner returns the owner's token accounts keyed by mint, across both token
// programs. When the owner has several accounts for one mint the first reported one wins.
func (c *Client) TokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) (map[solana.PublicKey]solana.PublicKey, error) {
	var (
		mu     sync.Mutex
		result = make(map[solana.PublicKey]solana.PublicKey)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, program := range TokenPrograms {
		g.Go(func() error {
			res, err := c.rpc.GetTokenAccountsByOwner(gctx, owner,
				&rpc.GetTokenAccountsConfig{ProgramId: &program},
				&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed, Encoding: solana.EncodingBase64},
			)
			if err != nil {
				return &RPCError{Method: "getTokenAccountsByOwner", Err: err}
			}

			mu.Lock()
			defer mu.Unlock()
			for _, acc := range res.Value {
				if acc == nil || acc.Account.Data == nil {
					continue
				}
				data := acc.Account.Data.GetBinary()
				// Token account layout starts with the 32-byte mint.
				if len(data) < solana.PublicKeyLength {
					continue
				}
				mint := solana.PublicKeyFromBytes(data[:solana.PublicKeyLength])
				if _, seen := result[mint]; !seen {
					result[mint] = acc.Pubkey
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Debug("TokenAccountsByOwner error", zap.Stringer("owner", owner), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// GetBalance получает баланс аккаунта в лампортах.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, &RPCError{Method: "getBalance", Err: err}
	}
	return res.Value, nil
}

// SendTransactionWithOpts отправляет транзакцию с заданными опциями.
func (c *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	})
	if err != nil {
		c.logger.Error("SendTransactionWithOpts error", zap.Error(err))
		return solana.Signature{}, &RPCError{Method: "sendTransaction", Err: err}
	}
	return sig, nil
}

// WaitForTransactionConfirmation опрашивает статус подписи, пока она не достигнет нужного
// уровня подтверждения. Ошибка исполнения транзакции возвращается сразу как *TxFailedError.
func (c *Client) WaitForTransactionConfirmation(ctx context.Context, sig solana.Signature, opts blockchain.ConfirmOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}

	poll := func() (struct{}, error) {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			c.logger.Warn("Error getting signature statuses", zap.Stringer("signature", sig), zap.Error(err))
			return struct{}{}, err
		}
		if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
			return struct{}{}, errNotLanded
		}
		status := statuses.Value[0]
		if status.Err != nil {
			return struct{}{}, backoff.Permanent(&TxFailedError{Signature: sig, Err: status.Err})
		}
		if !reached(status.ConfirmationStatus, opts.Commitment) {
			return struct{}{}, errNotLanded
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, poll,
		backoff.WithBackOff(backoff.NewConstantBackOff(opts.Interval)),
		backoff.WithMaxElapsedTime(opts.Timeout),
	)
	if err == nil {
		return nil
	}

	var failed *TxFailedError
	if errors.As(err, &failed) {
		return failed
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("confirm %s: %w", sig, ctxErr)
	}
	return fmt.Errorf("confirm %s: %w: %v", sig, ErrConfirmationTimeout, err)
}

// reached reports whether status satisfies the requested commitment.
func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	rank := map[rpc.ConfirmationStatusType]int{
		rpc.ConfirmationStatusProcessed: 1,
		rpc.ConfirmationStatusConfirmed: 2,
		rpc.ConfirmationStatusFinalized: 3,
	}
	need := 2
	switch want {
	case rpc.CommitmentProcessed:
		need = 1
	case rpc.CommitmentFinalized:
		need = 3
	}
	return rank[status] >= need
}

// IsMintAccount reports whether acc is a mint owned by one of the token programs.
func IsMintAccount(acc *rpc.Account) bool {
	if acc == nil || acc.Data == nil {
		return false
	}
	owned := false
	for _, p := range TokenPrograms {
		if acc.Owner.Equals(p) {
			owned = true
			break
		}
	}
	if !owned {
		return false
	}
	data := acc.Data.GetBinary()
	if len(data) == splMintSize {
		return true
	}
	// Token-2022 mints with extensions are padded to the token account size and tagged.
	return acc.Owner.Equals(Token2022ProgramID) &&
		len(data) > token2022AccountTypeOffset &&
		data[token2022AccountTypeOffset] == token2022AccountTypeMint
}

// Close releases the underlying HTTP transport.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
