// internal/dex/raydium/client.go
package raydium

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
)

const (
	DefaultSwapHost        = "https://transaction-v1.raydium.io"
	DefaultBaseHost        = "https://api-v3.raydium.io"
	DefaultPriorityFeePath = "/main/auto-fee"
	DefaultTxVersion       = "V0"
	DefaultMaxRouteRetries = 3
	DefaultRouteRetryDelay = 5 * time.Second
	DefaultHTTPTimeout     = 10 * time.Second

	// ограничение на размер тела ошибки в логах
	maxErrorBody = 512
)

// Config настраивает клиент торгового API
type Config struct {
	SwapHost        string
	BaseHost        string
	PriorityFeePath string
	TxVersion       string
	MaxRouteRetries int
	RouteRetryDelay time.Duration
	HTTPTimeout     time.Duration
}

func (c *Config) setDefaults() {
	if c.SwapHost == "" {
		c.SwapHost = DefaultSwapHost
	}
	if c.BaseHost == "" {
		c.BaseHost = DefaultBaseHost
	}
	if c.PriorityFeePath == "" {
		c.PriorityFeePath = DefaultPriorityFeePath
	}
	if c.TxVersion == "" {
		c.TxVersion = DefaultTxVersion
	}
	// 0 - без повторов RouteNotFound
	if c.MaxRouteRetries < 0 {
		c.MaxRouteRetries = DefaultMaxRouteRetries
	}
	if c.RouteRetryDelay <= 0 {
		c.RouteRetryDelay = DefaultRouteRetryDelay
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	c.SwapHost = strings.TrimRight(c.SwapHost, "/")
	c.BaseHost = strings.TrimRight(c.BaseHost, "/")
}

// Client talks to the Raydium trade API: quotes, priority fees and serialized swap
// transactions.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *zap.Logger

	// подменяются в тестах
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient создает клиент с заданной конфигурацией
func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg.setDefaults()
	return &Client{
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:    cfg,
		logger: logger.Named("raydium"),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PriorityFee fetches the current compute-unit price tiers.
func (c *Client) PriorityFee(ctx context.Context) (domain.PriorityFeeEstimate, error) {
	var resp feeResponse
	if err := c.doRequest(ctx, "priority-fee", http.MethodGet, c.cfg.BaseHost+c.cfg.PriorityFeePath, nil, &resp); err != nil {
		return domain.PriorityFeeEstimate{}, err
	}
	if !resp.Success {
		return domain.PriorityFeeEstimate{}, &QuoteError{Op: "priority-fee", Msg: "unsuccessful response"}
	}
	est := domain.PriorityFeeEstimate{
		Low:    resp.Data.Default.M,
		Medium: resp.Data.Default.H,
		High:   resp.Data.Default.VH,
	}
	c.logger.Debug("Priority fee fetched",
		zap.Uint64("low", est.Low),
		zap.Uint64("medium", est.Medium),
		zap.Uint64("high", est.High))
	return est, nil
}

// BuildSwap asks the API to serialize the swap and returns raw transactions in execution order.
func (c *Client) BuildSwap(ctx context.Context, req SwapRequest) ([][]byte, error) {
	if len(req.Route) == 0 {
		return nil, &QuoteError{Op: "build-swap", Msg: "empty route payload"}
	}
	body := swapTxRequest{
		ComputeUnitPriceMicroLamports: strconv.FormatUint(req.ComputeUnitPrice, 10),
		SwapResponse:                  req.Route,
		TxVersion:                     c.cfg.TxVersion,
		Wallet:                        req.Wallet.String(),
		WrapSol:                       req.WrapSol,
		UnwrapSol:                     req.UnwrapSol,
	}
	if req.InputAccount != nil {
		body.InputAccount = req.InputAccount.String()
	}
	if req.OutputAccount != nil {
		body.OutputAccount = req.OutputAccount.String()
	}

	var resp swapTxResponse
	if err := c.doRequest(ctx, "build-swap", http.MethodPost, c.cfg.SwapHost+"/transaction/swap-base-in", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || len(resp.Data) == 0 {
		return nil, &QuoteError{Op: "build-swap", Msg: fmt.Sprintf("no transactions returned: %s", resp.Msg)}
	}

	txs := make([][]byte, 0, len(resp.Data))
	for i, d := range resp.Data {
		raw, err := base64.StdEncoding.DecodeString(d.Transaction)
		if err != nil {
			return nil, &QuoteError{Op: "build-swap", Err: fmt.Errorf("decode transaction %d: %w", i, err)}
		}
		txs = append(txs, raw)
	}
	return txs, nil
}

// doRequest выполняет HTTP запрос и декодирует JSON ответ. Любая ошибка - QuoteError.
func (c *Client) doRequest(ctx context.Context, op, method, url string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &QuoteError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return &QuoteError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &QuoteError{Op: op, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &QuoteError{Op: op, Status: resp.StatusCode, Msg: string(b)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &QuoteError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
