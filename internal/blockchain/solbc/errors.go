// internal/blockchain/solbc/errors.go
package solbc

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	errNotLanded = errors.New("signature not yet at requested commitment")
)

// RPCError представляет ошибку RPC с дополнительным контекстом
type RPCError struct {
	Method string
	Err    error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s: %v", e.Method, e.Err)
}

func (e *RPCError) Unwrap() error {
	return e.Err
}

// TxFailedError is returned when a submitted transaction landed with an execution error.
type TxFailedError struct {
	Signature solana.Signature
	Err       interface{}
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
}
