// internal/dex/raydium/quote.go
package raydium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
)

// GetRoute requests a swap quote and drives the RouteNotFound / NotYetOpen state machine.
//
// RouteNotFound is retried with a constant delay up to MaxRouteRetries times. NotYetOpen
// sleeps until the announced open time and starts over with a fresh retry budget. Anything
// else is a hard failure. The whole loop is bounded by ctx.
func (c *Client) GetRoute(ctx context.Context, req RouteRequest) (*domain.QuoteRoute, error) {
	logger := c.logger.With(
		zap.String("input_mint", req.InputMint.String()),
		zap.String("output_mint", req.OutputMint.String()),
		zap.Uint64("amount", req.Amount))

	// повторные "еще не открыт" с уже прошедшим временем
	staleOpens := 0
	var openedAt *time.Time

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		route, err := c.quoteWithRetries(ctx, req, logger)
		if err == nil {
			route.NotBefore = openedAt
			return route, nil
		}

		var notOpen *notYetOpenError
		if !errors.As(err, &notOpen) {
			return nil, err
		}

		if deadline, ok := ctx.Deadline(); ok && notOpen.OpenAt.After(deadline) {
			return nil, fmt.Errorf("%w: opens %s, deadline %s", ErrOpensAfterDeadline,
				notOpen.OpenAt.Format(time.RFC3339), deadline.Format(time.RFC3339))
		}

		wait := notOpen.OpenAt.Sub(c.now())
		if wait <= 0 {
			staleOpens++
			if staleOpens > c.cfg.MaxRouteRetries {
				return nil, ErrNotYetOpenLoop
			}
			logger.Debug("Open time already passed, re-requesting", zap.Time("open_at", notOpen.OpenAt))
			continue
		}
		staleOpens = 0
		openAt := notOpen.OpenAt
		openedAt = &openAt

		logger.Info("Pool not open yet, waiting",
			zap.Time("open_at", notOpen.OpenAt),
			zap.Duration("wait", wait))
		if req.OnWaitForOpen != nil {
			req.OnWaitForOpen(notOpen.OpenAt)
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// quoteWithRetries spends one RouteNotFound budget. NotYetOpen and hard failures stop it
// immediately.
func (c *Client) quoteWithRetries(ctx context.Context, req RouteRequest, logger *zap.Logger) (*domain.QuoteRoute, error) {
	attempt := 0
	operation := func() (*domain.QuoteRoute, error) {
		attempt++
		route, err := c.quoteOnce(ctx, req)
		if err == nil {
			return route, nil
		}
		if errors.Is(err, ErrRouteNotFound) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	notify := func(err error, d time.Duration) {
		logger.Debug("Route not found, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", d))
		if req.OnRetry != nil {
			req.OnRetry(attempt, d)
		}
	}

	route, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.RouteRetryDelay)),
		backoff.WithMaxTries(uint(c.cfg.MaxRouteRetries)+1),
		backoff.WithNotify(notify))
	if err != nil {
		if errors.Is(err, ErrRouteNotFound) {
			return nil, fmt.Errorf("%w after %d attempts", ErrRouteNotFound, attempt)
		}
		return nil, err
	}
	return route, nil
}

// quoteOnce выполняет один запрос compute и классифицирует ответ
func (c *Client) quoteOnce(ctx context.Context, req RouteRequest) (*domain.QuoteRoute, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint.String())
	q.Set("outputMint", req.OutputMint.String())
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	q.Set("txVersion", c.cfg.TxVersion)

	// тело целиком уходит в /transaction как swapResponse
	var raw json.RawMessage
	if err := c.doRequest(ctx, "compute", http.MethodGet, c.cfg.SwapHost+"/compute/swap-base-in?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	var resp computeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &QuoteError{Op: "compute", Err: fmt.Errorf("decode response: %w", err)}
	}

	switch {
	case resp.Success && len(resp.Data) > 0:
		return decodeRoute(resp.Data, raw)
	case resp.Msg == msgRouteNotFound:
		return nil, ErrRouteNotFound
	case resp.OpenTime != "":
		secs, err := strconv.ParseInt(resp.OpenTime, 10, 64)
		if err != nil {
			return nil, &QuoteError{Op: "compute", Err: fmt.Errorf("bad openTime %q: %w", resp.OpenTime, err)}
		}
		return nil, &notYetOpenError{OpenAt: time.Unix(secs, 0)}
	default:
		msg := resp.Msg
		if msg == "" {
			msg = "unsuccessful response"
		}
		return nil, &QuoteError{Op: "compute", Msg: msg}
	}
}

// decodeRoute парсит data, а Payload хранит полный ответ compute.
func decodeRoute(data, body json.RawMessage) (*domain.QuoteRoute, error) {
	var sc swapCompute
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, &QuoteError{Op: "compute", Err: fmt.Errorf("decode route: %w", err)}
	}

	in, err := solana.PublicKeyFromBase58(sc.InputMint)
	if err != nil {
		return nil, &QuoteError{Op: "compute", Err: fmt.Errorf("input mint: %w", err)}
	}
	out, err := solana.PublicKeyFromBase58(sc.OutputMint)
	if err != nil {
		return nil, &QuoteError{Op: "compute", Err: fmt.Errorf("output mint: %w", err)}
	}

	amounts := make([]uint64, 3)
	for i, s := range []string{sc.InputAmount, sc.OutputAmount, sc.OtherAmountThreshold} {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, &QuoteError{Op: "compute", Err: fmt.Errorf("amount %q: %w", s, err)}
		}
		amounts[i] = v
	}

	return &domain.QuoteRoute{
		InputMint:       in,
		OutputMint:      out,
		InputAmount:     amounts[0],
		OutputAmount:    amounts[1],
		OutputAmountMin: amounts[2],
		PriceImpactPct:  sc.PriceImpactPct,
		SlippageBps:     sc.SlippageBps,
		Payload:         append(json.RawMessage(nil), body...),
	}, nil
}
