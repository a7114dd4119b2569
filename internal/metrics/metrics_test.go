package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
)

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.LogBatch()
		c.Candidate(StageMatched)
		c.AttemptSkipped("in_flight")
		c.AttemptStarted()
		c.AttemptFinished(&domain.BuyAttempt{})
		c.RouteRetry()
		c.Transaction(true)
		c.Reconnect()
	})
	assert.Nil(t, c.Registry())
}

func TestCollector_Attempts(t *testing.T) {
	c := NewCollector(nil)

	ok := domain.NewBuyAttempt(domain.EligibleToken{})
	c.AttemptStarted()
	ok.Finish(nil)
	c.AttemptFinished(ok)

	partial := domain.NewBuyAttempt(domain.EligibleToken{})
	c.AttemptStarted()
	partial.Confirmed = 1
	partial.Finish(assert.AnError)
	c.AttemptFinished(partial)

	c.AttemptSkipped("in_flight")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("skipped_in_flight")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inFlight))
	assert.Equal(t, 2, testutil.CollectAndCount(c.attemptDuration))
}

func TestServe(t *testing.T) {
	c := NewCollector(nil)
	c.Candidate(StageEligible)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := Serve(ctx, "127.0.0.1:0", c, zaptest.NewLogger(t))
	require.NoError(t, err)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `sniper_candidates_total{stage="eligible"} 1`)
}

func TestServe_Disabled(t *testing.T) {
	addr, err := Serve(context.Background(), "", NewCollector(nil), zaptest.NewLogger(t))
	assert.NoError(t, err)
	assert.Empty(t, addr)
}
