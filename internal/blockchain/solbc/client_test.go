package solbc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/cpmm-sniper/internal/blockchain"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC calls with handlers keyed by method name.
func fakeNode(t *testing.T, handlers map[string]func(params []json.RawMessage) interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		h, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": h(req.Params)}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func statusResult(status string, txErr interface{}) interface{} {
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": 10},
		"value": []interface{}{map[string]interface{}{
			"slot":               10,
			"confirmations":      nil,
			"err":                txErr,
			"confirmationStatus": status,
		}},
	}
}

func TestWaitForTransactionConfirmation_PollsUntilConfirmed(t *testing.T) {
	var calls atomic.Int32
	srv := fakeNode(t, map[string]func([]json.RawMessage) interface{}{
		"getSignatureStatuses": func([]json.RawMessage) interface{} {
			switch calls.Add(1) {
			case 1:
				return map[string]interface{}{"context": map[string]interface{}{"slot": 10}, "value": []interface{}{nil}}
			case 2:
				return statusResult("processed", nil)
			default:
				return statusResult("confirmed", nil)
			}
		},
	})

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	err := c.WaitForTransactionConfirmation(context.Background(), solana.Signature{1}, blockchain.ConfirmOptions{
		Commitment: rpc.CommitmentConfirmed,
		Interval:   5 * time.Millisecond,
		Timeout:    2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWaitForTransactionConfirmation_TransactionError(t *testing.T) {
	srv := fakeNode(t, map[string]func([]json.RawMessage) interface{}{
		"getSignatureStatuses": func([]json.RawMessage) interface{} {
			return statusResult("confirmed", map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}})
		},
	})

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	err := c.WaitForTransactionConfirmation(context.Background(), solana.Signature{2}, blockchain.ConfirmOptions{
		Interval: 5 * time.Millisecond,
		Timeout:  time.Second,
	})
	var failed *TxFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, solana.Signature{2}, failed.Signature)
}

func TestWaitForTransactionConfirmation_Timeout(t *testing.T) {
	srv := fakeNode(t, map[string]func([]json.RawMessage) interface{}{
		"getSignatureStatuses": func([]json.RawMessage) interface{} {
			return statusResult("processed", nil)
		},
	})

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	err := c.WaitForTransactionConfirmation(context.Background(), solana.Signature{3}, blockchain.ConfirmOptions{
		Interval: 5 * time.Millisecond,
		Timeout:  50 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
}

func tokenAccount(pubkey, mint, program solana.PublicKey) map[string]interface{} {
	data := make([]byte, 165)
	copy(data, mint[:])
	return map[string]interface{}{
		"pubkey": pubkey.String(),
		"account": map[string]interface{}{
			"lamports":   2039280,
			"owner":      program.String(),
			"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
			"executable": false,
			"rentEpoch":  0,
		},
	}
}

func TestTokenAccountsByOwner_MergesBothPrograms(t *testing.T) {
	legacyMint := solana.NewWallet().PublicKey()
	extMint := solana.NewWallet().PublicKey()
	legacyAcc := solana.NewWallet().PublicKey()
	extAcc := solana.NewWallet().PublicKey()

	var mu sync.Mutex
	var programs []string
	srv := fakeNode(t, map[string]func([]json.RawMessage) interface{}{
		"getTokenAccountsByOwner": func(params []json.RawMessage) interface{} {
			var filter struct {
				ProgramID string `json:"programId"`
			}
			require.NoError(t, json.Unmarshal(params[1], &filter))
			mu.Lock()
			programs = append(programs, filter.ProgramID)
			mu.Unlock()

			var value []interface{}
			if filter.ProgramID == solana.TokenProgramID.String() {
				value = append(value, tokenAccount(legacyAcc, legacyMint, solana.TokenProgramID))
			} else {
				value = append(value, tokenAccount(extAcc, extMint, Token2022ProgramID))
			}
			return map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": value}
		},
	})

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	accounts, err := c.TokenAccountsByOwner(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)

	assert.Equal(t, legacyAcc, accounts[legacyMint])
	assert.Equal(t, extAcc, accounts[extMint])
	assert.ElementsMatch(t, []string{solana.TokenProgramID.String(), Token2022ProgramID.String()}, programs)
}

func TestGetBalance(t *testing.T) {
	srv := fakeNode(t, map[string]func([]json.RawMessage) interface{}{
		"getBalance": func([]json.RawMessage) interface{} {
			return map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": 1_500_000_000}
		},
	})

	c := NewClient(srv.URL, zaptest.NewLogger(t))
	bal, err := c.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), bal)
}

func TestIsMintAccount(t *testing.T) {
	mint := &rpc.Account{Owner: solana.TokenProgramID, Data: rpc.DataBytesOrJSONFromBytes(make([]byte, 82))}
	assert.True(t, IsMintAccount(mint))

	holding := &rpc.Account{Owner: solana.TokenProgramID, Data: rpc.DataBytesOrJSONFromBytes(make([]byte, 165))}
	assert.False(t, IsMintAccount(holding))

	extData := make([]byte, 234)
	extData[165] = 1
	extMint := &rpc.Account{Owner: Token2022ProgramID, Data: rpc.DataBytesOrJSONFromBytes(extData)}
	assert.True(t, IsMintAccount(extMint))

	foreign := &rpc.Account{Owner: solana.SystemProgramID, Data: rpc.DataBytesOrJSONFromBytes(make([]byte, 82))}
	assert.False(t, IsMintAccount(foreign))
	assert.False(t, IsMintAccount(nil))
}

func TestReached(t *testing.T) {
	assert.True(t, reached(rpc.ConfirmationStatusFinalized, rpc.CommitmentConfirmed))
	assert.True(t, reached(rpc.ConfirmationStatusConfirmed, rpc.CommitmentConfirmed))
	assert.False(t, reached(rpc.ConfirmationStatusProcessed, rpc.CommitmentConfirmed))
	assert.True(t, reached(rpc.ConfirmationStatusProcessed, rpc.CommitmentProcessed))
	assert.False(t, reached(rpc.ConfirmationStatusConfirmed, rpc.CommitmentFinalized))
}
