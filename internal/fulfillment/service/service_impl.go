package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
	"github.com/smallbiznis/mysteryart/internal/clock"
	"github.com/smallbiznis/mysteryart/internal/config"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/smallbiznis/mysteryart/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/mysteryart/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/mysteryart/internal/payment/domain"
	tierdomain "github.com/smallbiznis/mysteryart/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	defaultMaxAttempts    = 5
	defaultAttemptTimeout = 30 * time.Second
	persistTimeout        = 5 * time.Second
)

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Store      fulfillmentdomain.Store
	Locker     fulfillmentdomain.Locker
	Source     fulfillmentdomain.ImageSource
	Sink       fulfillmentdomain.Sink
	Alerter    fulfillmentdomain.Alerter `optional:"true"`
	Catalog    tierdomain.Catalog        `optional:"true"`
	ObsMetrics *obsmetrics.Metrics       `optional:"true"`
}

// Pipeline turns verified payment confirmations into exactly one sink
// notification per order.
type Pipeline struct {
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	store      fulfillmentdomain.Store
	locker     fulfillmentdomain.Locker
	source     fulfillmentdomain.ImageSource
	sink       fulfillmentdomain.Sink
	alerter    fulfillmentdomain.Alerter
	catalog    tierdomain.Catalog
	obsMetrics *obsmetrics.Metrics

	maxAttempts    int
	attemptTimeout time.Duration
	includeArchive bool
}

func New(p Params) *Pipeline {
	maxAttempts := p.Config.Fulfillment.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	attemptTimeout := p.Config.Fulfillment.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	return &Pipeline{
		log:            p.Log.Named("fulfillment.pipeline"),
		genID:          p.GenID,
		clock:          p.Clock,
		store:          p.Store,
		locker:         p.Locker,
		source:         p.Source,
		sink:           p.Sink,
		alerter:        p.Alerter,
		catalog:        p.Catalog,
		obsMetrics:     p.ObsMetrics,
		maxAttempts:    maxAttempts,
		attemptTimeout: attemptTimeout,
		includeArchive: p.Config.Sink.IncludeArchive,
	}
}

func (p *Pipeline) MaxAttempts() int {
	return p.maxAttempts
}

// Handle processes one verified payment event. It is safe to call again for
// the same order at any state; the per-order lock is held for the whole
// attempt.
func (p *Pipeline) Handle(ctx context.Context, event *paymentdomain.PaymentEvent) (fulfillmentdomain.Result, error) {
	if event == nil {
		return fulfillmentdomain.Result{}, fulfillmentdomain.ErrInvalidEvent
	}
	if !event.Completed() {
		p.recordOutcome(ctx, fulfillmentdomain.OutcomeIgnored)
		return fulfillmentdomain.Result{Outcome: fulfillmentdomain.OutcomeIgnored}, nil
	}
	orderID := strings.TrimSpace(event.OrderID)
	if orderID == "" {
		return fulfillmentdomain.Result{}, fulfillmentdomain.ErrInvalidEvent
	}

	log := logger.WithContext(ctx, p.log).With(
		zap.String("order_id", orderID),
		zap.String("provider_event_id", event.ProviderEventID),
	)

	attemptCtx, cancel := context.WithTimeout(ctx, p.attemptTimeout)
	defer cancel()

	release, err := p.locker.Acquire(attemptCtx, orderID)
	if err != nil {
		log.Warn("order lock unavailable", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fulfillmentdomain.Result{}, fmt.Errorf("%w: %v", fulfillmentdomain.ErrLockBusy, err)
		}
		return fulfillmentdomain.Result{}, err
	}
	defer release()

	record, err := p.store.Get(attemptCtx, orderID)
	if err != nil {
		return fulfillmentdomain.Result{}, fmt.Errorf("load fulfillment record: %w", err)
	}

	now := p.clock.Now()
	if record == nil {
		record = p.newRecord(event, now)
	} else {
		switch record.Status {
		case fulfillmentdomain.StatusNotified:
			log.Info("order already fulfilled")
			p.recordOutcome(ctx, fulfillmentdomain.OutcomeAlreadyFulfilled)
			return fulfillmentdomain.Result{Outcome: fulfillmentdomain.OutcomeAlreadyFulfilled, Record: record.Clone()}, nil
		case fulfillmentdomain.StatusFailed:
			if record.Attempts >= p.maxAttempts {
				log.Info("order retry budget exhausted", zap.Int("attempts", record.Attempts))
				p.recordOutcome(ctx, fulfillmentdomain.OutcomeExhausted)
				return fulfillmentdomain.Result{Outcome: fulfillmentdomain.OutcomeExhausted, Record: record.Clone()}, nil
			}
			if err := transition(record, triggerRetry, p.maxAttempts); err != nil {
				return fulfillmentdomain.Result{}, err
			}
		}
	}

	record.Attempts++
	record.UpdatedAt = now
	if err := p.store.Put(attemptCtx, record); err != nil {
		return fulfillmentdomain.Result{}, fmt.Errorf("persist attempt: %w", err)
	}
	log = log.With(zap.Int("attempt", record.Attempts))

	if record.Status == fulfillmentdomain.StatusPackaged {
		log.Info("resuming packaged order at notification")
		return p.notify(ctx, attemptCtx, log, record, nil)
	}

	image, err := p.selectImage(attemptCtx, record)
	if err != nil {
		return p.fail(ctx, log, record, fulfillmentdomain.ErrSourceUnavailable, err)
	}
	body, err := p.source.Download(attemptCtx, image.URL)
	if err != nil {
		return p.fail(ctx, log, record, fulfillmentdomain.ErrSourceUnavailable, fmt.Errorf("download image %s: %w", image.ID, err))
	}

	artifact, err := packageArtifact(image, body, p.clock.Now())
	if err != nil {
		return p.fail(ctx, log, record, fulfillmentdomain.ErrPackagingFailed, err)
	}
	if err := transition(record, triggerPackage, p.maxAttempts); err != nil {
		return fulfillmentdomain.Result{}, err
	}
	record.Artifact = artifact.Descriptor
	record.UpdatedAt = p.clock.Now()
	if err := p.store.Put(attemptCtx, record); err != nil {
		return fulfillmentdomain.Result{}, fmt.Errorf("persist packaged: %w", err)
	}
	log.Info("artifact packaged",
		zap.String("source_id", artifact.Descriptor.SourceID),
		zap.String("packaged_name", artifact.Descriptor.PackagedName),
		zap.Int("archive_bytes", len(artifact.Archive)),
	)

	return p.notify(ctx, attemptCtx, log, record, artifact.Archive)
}

// Redrive re-enters a failed record without a provider delivery.
func (p *Pipeline) Redrive(ctx context.Context, record *fulfillmentdomain.Record) (fulfillmentdomain.Result, error) {
	if record == nil {
		return fulfillmentdomain.Result{}, fulfillmentdomain.ErrInvalidEvent
	}
	return p.Handle(ctx, EventFromRecord(record))
}

func (p *Pipeline) Get(ctx context.Context, orderID string) (*fulfillmentdomain.Record, error) {
	record, err := p.store.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fulfillmentdomain.ErrNotFound
	}
	return record, nil
}

func (p *Pipeline) List(ctx context.Context, filter fulfillmentdomain.ListFilter) ([]fulfillmentdomain.Record, error) {
	return p.store.List(ctx, filter)
}

func (p *Pipeline) notify(ctx, attemptCtx context.Context, log *zap.Logger, record *fulfillmentdomain.Record, archive []byte) (fulfillmentdomain.Result, error) {
	if !p.includeArchive {
		archive = nil
	}
	payload := BuildPayload(record, p.tierTitle(record.TierID), archive, p.clock.Now())

	if err := p.sink.Dispatch(attemptCtx, payload); err != nil {
		p.obsMetrics.RecordDispatch(ctx, "failed")
		return p.fail(ctx, log, record, fulfillmentdomain.ErrNotifyFailed, err)
	}
	p.obsMetrics.RecordDispatch(ctx, "delivered")

	if err := transition(record, triggerNotify, p.maxAttempts); err != nil {
		return fulfillmentdomain.Result{}, err
	}
	now := p.clock.Now()
	record.NotifiedAt = &now
	record.UpdatedAt = now
	record.LastError = nil
	record.FailureReason = fulfillmentdomain.FailureNone

	persistCtx, cancel := detached(ctx)
	defer cancel()
	if err := p.store.Put(persistCtx, record); err != nil {
		// The sink already has the notification; a redelivery before the
		// store recovers will notify again.
		log.Error("notification sent but record not persisted", zap.Error(err))
		p.recordOutcome(ctx, fulfillmentdomain.OutcomeFulfilled)
		return fulfillmentdomain.Result{Outcome: fulfillmentdomain.OutcomeFulfilled, Record: record.Clone()}, fmt.Errorf("persist notified: %w", err)
	}

	log.Info("order fulfilled", zap.String("total", payload.Total))
	p.recordOutcome(ctx, fulfillmentdomain.OutcomeFulfilled)
	return fulfillmentdomain.Result{Outcome: fulfillmentdomain.OutcomeFulfilled, Record: record.Clone()}, nil
}

// fail marks the record failed. A failure that cannot be persisted is
// returned without an outcome so the caller asks the provider to redeliver.
func (p *Pipeline) fail(ctx context.Context, log *zap.Logger, record *fulfillmentdomain.Record, kind error, cause error) (fulfillmentdomain.Result, error) {
	failure := fmt.Errorf("%w: %v", kind, cause)
	msg := failure.Error()
	record.LastError = &msg
	record.FailureReason = failureReason(kind)
	if err := transition(record, triggerFail, p.maxAttempts); err != nil {
		return fulfillmentdomain.Result{}, err
	}
	record.UpdatedAt = p.clock.Now()

	persistCtx, cancel := detached(ctx)
	defer cancel()
	if err := p.store.Put(persistCtx, record); err != nil {
		log.Error("failed to persist failed record", zap.Error(err), zap.NamedError("cause", failure))
		return fulfillmentdomain.Result{}, errors.Join(failure, fmt.Errorf("persist failure: %w", err))
	}

	if record.Attempts >= p.maxAttempts {
		log.Error("fulfillment failed permanently", zap.Error(failure))
		p.recordOutcome(ctx, fulfillmentdomain.OutcomeExhausted)
		p.alert(ctx, log, record)
		return fulfillmentdomain.Result{Outcome: fulfillmentdomain.OutcomeExhausted, Record: record.Clone()},
			errors.Join(fulfillmentdomain.ErrRetryExhausted, failure)
	}

	log.Warn("fulfillment attempt failed", zap.Error(failure))
	p.recordOutcome(ctx, fulfillmentdomain.OutcomeFailed)
	return fulfillmentdomain.Result{Outcome: fulfillmentdomain.OutcomeFailed, Record: record.Clone()}, failure
}

func (p *Pipeline) alert(ctx context.Context, log *zap.Logger, record *fulfillmentdomain.Record) {
	if p.alerter == nil {
		return
	}
	alertCtx, cancel := detached(ctx)
	defer cancel()
	if err := p.alerter.AlertExhausted(alertCtx, record.Clone()); err != nil {
		log.Error("ops alert failed", zap.Error(err))
	}
}

func (p *Pipeline) newRecord(event *paymentdomain.PaymentEvent, now time.Time) *fulfillmentdomain.Record {
	md := make(datatypes.JSONMap, len(event.RawMetadata))
	for key, value := range event.RawMetadata {
		md[key] = value
	}
	return &fulfillmentdomain.Record{
		ID:              p.genID.Generate(),
		OrderID:         strings.TrimSpace(event.OrderID),
		Status:          fulfillmentdomain.StatusPending,
		TierID:          event.Intent.TierID,
		PriceCents:      event.Intent.PriceCents,
		TipCents:        event.Intent.TipCents,
		AmountPaidCents: event.AmountPaidCents,
		Currency:        event.Currency,
		BuyerEmail:      event.BuyerEmail,
		ProviderEventID: event.ProviderEventID,
		Metadata:        md,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (p *Pipeline) tierTitle(tierID string) string {
	if p.catalog == nil {
		return ""
	}
	tier, err := p.catalog.Lookup(tierID)
	if err != nil {
		return ""
	}
	return tier.Title
}

func (p *Pipeline) recordOutcome(ctx context.Context, outcome fulfillmentdomain.Outcome) {
	p.obsMetrics.RecordFulfillment(ctx, string(outcome))
}

// EventFromRecord rebuilds the completed event a record was created from.
func EventFromRecord(record *fulfillmentdomain.Record) *paymentdomain.PaymentEvent {
	raw := make(map[string]string, len(record.Metadata))
	for key, value := range record.Metadata {
		if s, ok := value.(string); ok {
			raw[key] = s
		}
	}
	return &paymentdomain.PaymentEvent{
		Kind:            paymentdomain.KindCompleted,
		Provider:        "redrive",
		ProviderEventID: record.ProviderEventID,
		OrderID:         record.OrderID,
		AmountPaidCents: record.AmountPaidCents,
		Currency:        record.Currency,
		BuyerEmail:      record.BuyerEmail,
		RawMetadata:     raw,
		Intent: checkoutdomain.OrderIntent{
			OrderID:    record.OrderID,
			TierID:     record.TierID,
			PriceCents: record.PriceCents,
			TipCents:   record.TipCents,
			BuyerEmail: record.BuyerEmail,
		},
		OccurredAt: record.CreatedAt,
	}
}

func failureReason(kind error) fulfillmentdomain.FailureReason {
	switch {
	case errors.Is(kind, fulfillmentdomain.ErrSourceUnavailable):
		return fulfillmentdomain.FailureSourceUnavailable
	case errors.Is(kind, fulfillmentdomain.ErrPackagingFailed):
		return fulfillmentdomain.FailurePackaging
	case errors.Is(kind, fulfillmentdomain.ErrNotifyFailed):
		return fulfillmentdomain.FailureNotify
	default:
		return fulfillmentdomain.FailureNone
	}
}

// detached keeps request values but survives cancellation of ctx, so
// state written after a timed-out step still reaches the store.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}
