package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/mysteryart/internal/clock"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	obscontext "github.com/smallbiznis/mysteryart/internal/observability/context"
	obsmetrics "github.com/smallbiznis/mysteryart/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

const jobRedriveFailed = "redrive_failed"

type Params struct {
	fx.In

	Log            *zap.Logger
	Clock          clock.Clock
	Fulfillment    fulfillmentdomain.Service
	Config         Config                     `optional:"true"`
	SweeperMetrics *obsmetrics.SweeperMetrics `optional:"true"`
}

// Scheduler periodically re-drives failed fulfillments whose retry budget
// is not spent.
type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	fulfillment fulfillmentdomain.Service
	metrics     *obsmetrics.SweeperMetrics
	maxAttempts int
}

// SweepSummary reports one pass.
type SweepSummary struct {
	Scanned   int
	Fulfilled int
	Failed    int
	Exhausted int
	Skipped   int
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Fulfillment == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		log:         p.Log.Named("scheduler"),
		cfg:         cfg,
		clock:       p.Clock,
		fulfillment: p.Fulfillment,
		metrics:     p.SweeperMetrics,
		maxAttempts: cfg.MaxAttempts,
	}, nil
}

func (s *Scheduler) RunOnce(parent context.Context) (SweepSummary, error) {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	runID := uuid.NewString()
	ctx = obscontext.WithRequestID(ctx, runID)
	log := s.log.With(zap.String("job", jobRedriveFailed), zap.String("run_id", runID))

	summary, err := s.redriveFailed(ctx, log, start)
	s.metrics.ObserveRun(s.clock.Now().Sub(start))

	if summary.Scanned > 0 || err != nil {
		log.Info("sweep finished",
			zap.Int("scanned", summary.Scanned),
			zap.Int("fulfilled", summary.Fulfilled),
			zap.Int("failed", summary.Failed),
			zap.Int("exhausted", summary.Exhausted),
			zap.Int("skipped", summary.Skipped),
			zap.Error(err),
		)
	}
	if err == nil {
		return summary, nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncError(obsmetrics.SweepReasonDeadlineExceeded)
		log.Warn("sweep timed out", zap.Duration("timeout", s.cfg.JobTimeout), zap.Error(err))
		return summary, nil
	}
	return summary, fmt.Errorf("%s: %w", jobRedriveFailed, err)
}

func (s *Scheduler) redriveFailed(ctx context.Context, log *zap.Logger, now time.Time) (SweepSummary, error) {
	var summary SweepSummary

	due, err := s.fulfillment.List(ctx, fulfillmentdomain.ListFilter{
		Status:        fulfillmentdomain.StatusFailed,
		MaxAttempts:   s.maxAttempts,
		UpdatedBefore: now.Add(-s.cfg.MinAge),
		Limit:         s.cfg.BatchSize,
	})
	if err != nil {
		s.metrics.IncError(obsmetrics.ClassifySweepError(err, fulfillmentdomain.ErrLockBusy))
		return summary, err
	}

	for i := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		record := &due[i]
		summary.Scanned++
		s.metrics.ObserveRecordAge(now.Sub(record.UpdatedAt))

		recordCtx := obscontext.WithOrderID(ctx, record.OrderID)
		result, err := s.fulfillment.Redrive(recordCtx, record)
		switch result.Outcome {
		case fulfillmentdomain.OutcomeFulfilled:
			summary.Fulfilled++
		case fulfillmentdomain.OutcomeFailed:
			summary.Failed++
		case fulfillmentdomain.OutcomeExhausted:
			summary.Exhausted++
		default:
			summary.Skipped++
		}
		if result.Outcome != "" {
			s.metrics.IncRedriven(string(result.Outcome))
		}
		if err != nil {
			// Per-record failures are already persisted on the record.
			reason := obsmetrics.ClassifySweepError(err, fulfillmentdomain.ErrLockBusy)
			s.metrics.IncError(reason)
			log.Warn("redrive attempt did not complete",
				zap.String("order_id", record.OrderID),
				zap.String("reason", reason),
				zap.Error(err),
			)
		}
	}
	return summary, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
