package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	SweepReasonDeadlineExceeded = "deadline_exceeded"
	SweepReasonDBLockTimeout    = "db_lock_timeout"
	SweepReasonLockBusy         = "lock_busy"
	SweepReasonDB               = "db"
	SweepReasonUnknown          = "unknown"
)

// SweeperMetrics tracks background redrives of failed fulfillments.
type SweeperMetrics struct {
	runs     prometheus.Counter
	duration prometheus.Histogram
	redriven *prometheus.CounterVec
	errors   *prometheus.CounterVec
	lag      prometheus.Histogram
}

func NewSweeperMetrics(cfg Config) (*SweeperMetrics, error) {
	return newSweeperMetrics(prometheus.DefaultRegisterer, cfg)
}

func newSweeperMetrics(registerer prometheus.Registerer, cfg Config) (*SweeperMetrics, error) {
	constLabels := serviceLabels(cfg)
	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "mysteryart_sweeper_runs_total",
		Help:        "Sweeper passes over failed fulfillments.",
		ConstLabels: constLabels,
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "mysteryart_sweeper_run_duration_seconds",
		Help:        "Time spent in one sweeper pass.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		ConstLabels: constLabels,
	})
	redriven := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "mysteryart_sweeper_redriven_total",
		Help:        "Failed fulfillments re-driven by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "mysteryart_sweeper_errors_total",
		Help:        "Sweeper errors by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "mysteryart_sweeper_record_age_seconds",
		Help:        "Age of failed records when the sweeper picks them up.",
		Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 900, 3600},
		ConstLabels: constLabels,
	})

	var err error
	if runs, err = registerCollector(registerer, runs); err != nil {
		return nil, err
	}
	if duration, err = registerCollector(registerer, duration); err != nil {
		return nil, err
	}
	if redriven, err = registerCollector(registerer, redriven); err != nil {
		return nil, err
	}
	if errs, err = registerCollector(registerer, errs); err != nil {
		return nil, err
	}
	if lag, err = registerCollector(registerer, lag); err != nil {
		return nil, err
	}

	return &SweeperMetrics{runs: runs, duration: duration, redriven: redriven, errors: errs, lag: lag}, nil
}

func (m *SweeperMetrics) ObserveRun(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *SweeperMetrics) ObserveRecordAge(age time.Duration) {
	if m == nil || age < 0 {
		return
	}
	m.lag.Observe(age.Seconds())
}

func (m *SweeperMetrics) IncRedriven(outcome string) {
	if m == nil {
		return
	}
	m.redriven.WithLabelValues(outcome).Inc()
}

func (m *SweeperMetrics) IncError(reason string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(reason).Inc()
}

// ClassifySweepError maps an error to a low-cardinality reason label.
func ClassifySweepError(err error, lockBusy error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return SweepReasonDeadlineExceeded
	}
	if lockBusy != nil && errors.Is(err, lockBusy) {
		return SweepReasonLockBusy
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "55P03" {
			return SweepReasonDBLockTimeout
		}
		return SweepReasonDB
	}
	return SweepReasonUnknown
}
