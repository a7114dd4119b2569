// internal/metrics/collector.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
)

const namespace = "sniper"

// Стадии прохождения кандидата через конвейер
const (
	StageMatched    = "matched"
	StageDuplicate  = "duplicate"
	StageFetchError = "fetch_error"
	StageNoLayout   = "no_layout"
	StageIneligible = "ineligible"
	StageEligible   = "eligible"
)

// Collector владеет всеми метриками снайпера. Методы безопасны для nil-получателя, так что
// компоненты могут работать без метрик.
type Collector struct {
	registry *prometheus.Registry

	logBatches      prometheus.Counter
	candidates      *prometheus.CounterVec
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	routeRetries    prometheus.Counter
	transactions    *prometheus.CounterVec
	inFlight        prometheus.Gauge
	reconnects      prometheus.Counter
}

// NewCollector регистрирует метрики в reg; nil создает отдельный реестр.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: reg,
		logBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_batches_total",
			Help:      "Program log notifications received from the subscription",
		}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Pool creation candidates by pipeline stage",
		}, []string{"stage"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buy_attempts_total",
			Help:      "Buy attempts by outcome",
		}, []string{"outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "buy_attempt_duration_seconds",
			Help:      "Wall time of terminal buy attempts",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 180},
		}, []string{"status"}),
		routeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_retries_total",
			Help:      "Quote retries after ROUTE_NOT_FOUND",
		}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Submitted swap transactions by result",
		}, []string{"result"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attempts_in_flight",
			Help:      "Buy attempts currently running",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Log subscription reconnects",
		}),
	}
	reg.MustRegister(c.logBatches, c.candidates, c.attempts, c.attemptDuration,
		c.routeRetries, c.transactions, c.inFlight, c.reconnects)
	return c
}

// Registry returns the registry metrics are exported from.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) LogBatch() {
	if c == nil {
		return
	}
	c.logBatches.Inc()
}

func (c *Collector) Candidate(stage string) {
	if c == nil {
		return
	}
	c.candidates.WithLabelValues(stage).Inc()
}

// AttemptSkipped counts a Buy call rejected before any network call.
func (c *Collector) AttemptSkipped(reason string) {
	if c == nil {
		return
	}
	c.attempts.WithLabelValues("skipped_" + reason).Inc()
}

func (c *Collector) AttemptStarted() {
	if c == nil {
		return
	}
	c.inFlight.Inc()
}

// AttemptFinished records a terminal attempt.
func (c *Collector) AttemptFinished(a *domain.BuyAttempt) {
	if c == nil {
		return
	}
	c.inFlight.Dec()
	outcome := string(a.Status)
	if a.Partial() {
		outcome = "partial"
	}
	c.attempts.WithLabelValues(outcome).Inc()
	c.attemptDuration.WithLabelValues(string(a.Status)).Observe(a.Duration().Seconds())
}

func (c *Collector) RouteRetry() {
	if c == nil {
		return
	}
	c.routeRetries.Inc()
}

func (c *Collector) Transaction(confirmed bool) {
	if c == nil {
		return
	}
	result := "confirmed"
	if !confirmed {
		result = "failed"
	}
	c.transactions.WithLabelValues(result).Inc()
}

func (c *Collector) Reconnect() {
	if c == nil {
		return
	}
	c.reconnects.Inc()
}
