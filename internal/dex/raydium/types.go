// internal/dex/raydium/types.go
package raydium

import (
	"encoding/json"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Сообщения API, на которые клиент реагирует отдельно
const (
	msgRouteNotFound = "ROUTE_NOT_FOUND"
)

// computeResponse - ответ /compute/swap-base-in
type computeResponse struct {
	ID       string          `json:"id"`
	Success  bool            `json:"success"`
	Version  string          `json:"version"`
	Msg      string          `json:"msg,omitempty"`
	OpenTime string          `json:"openTime,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// swapCompute - поле data успешного ответа compute. Сам ответ compute пересылается в /transaction целиком.
type swapCompute struct {
	SwapType             string          `json:"swapType"`
	InputMint            string          `json:"inputMint"`
	InputAmount          string          `json:"inputAmount"`
	OutputMint           string          `json:"outputMint"`
	OutputAmount         string          `json:"outputAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SlippageBps          int             `json:"slippageBps"`
	PriceImpactPct       float64         `json:"priceImpactPct"`
	RoutePlan            json.RawMessage `json:"routePlan"`
}

// feeResponse - ответ /main/auto-fee
type feeResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Data    struct {
		Default struct {
			VH uint64 `json:"vh"`
			H  uint64 `json:"h"`
			M  uint64 `json:"m"`
		} `json:"default"`
	} `json:"data"`
}

// swapTxRequest - тело POST /transaction/swap-base-in
type swapTxRequest struct {
	ComputeUnitPriceMicroLamports string          `json:"computeUnitPriceMicroLamports"`
	SwapResponse                  json.RawMessage `json:"swapResponse"`
	TxVersion                     string          `json:"txVersion"`
	Wallet                        string          `json:"wallet"`
	WrapSol                       bool            `json:"wrapSol"`
	UnwrapSol                     bool            `json:"unwrapSol"`
	InputAccount                  string          `json:"inputAccount,omitempty"`
	OutputAccount                 string          `json:"outputAccount,omitempty"`
}

// swapTxResponse - ответ /transaction/swap-base-in
type swapTxResponse struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Success bool   `json:"success"`
	Msg     string `json:"msg,omitempty"`
	Data    []struct {
		Transaction string `json:"transaction"`
	} `json:"data"`
}

// RouteRequest describes one quote lookup.
type RouteRequest struct {
	InputMint   solana.PublicKey
	OutputMint  solana.PublicKey
	Amount      uint64
	SlippageBps int

	// OnRetry is called before each RouteNotFound retry with the attempt number.
	OnRetry func(attempt int, wait time.Duration)
	// OnWaitForOpen is called before sleeping until the pool opens.
	OnWaitForOpen func(openAt time.Time)
}

// SwapRequest carries everything the transaction builder needs.
type SwapRequest struct {
	Route            json.RawMessage
	Wallet           solana.PublicKey
	ComputeUnitPrice uint64
	WrapSol          bool
	UnwrapSol        bool
	// InputAccount and OutputAccount are the holding accounts for non-native sides.
	InputAccount  *solana.PublicKey
	OutputAccount *solana.PublicKey
}
