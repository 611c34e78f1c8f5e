package webhook

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/mysteryart/internal/config"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/smallbiznis/mysteryart/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/mysteryart/internal/observability/metrics"
	"github.com/smallbiznis/mysteryart/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/mysteryart/internal/payment/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	Verifier    paymentdomain.Verifier
	Fulfillment fulfillmentdomain.Service
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

// Service authenticates provider deliveries and hands confirmed payments to
// the fulfillment pipeline.
type Service struct {
	enabled     bool
	provider    string
	log         *zap.Logger
	verifier    paymentdomain.Verifier
	fulfillment fulfillmentdomain.Service
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		enabled:     strings.TrimSpace(p.Cfg.Stripe.WebhookSecret) != "",
		provider:    "stripe",
		log:         p.Log.Named("payment.webhook"),
		verifier:    p.Verifier,
		fulfillment: p.Fulfillment,
		obsMetrics:  p.ObsMetrics,
	}
}

// IngestWebhook verifies payload against signatureHeader and runs the
// fulfillment pipeline for completed payments. The returned event is nil
// when verification fails.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, signatureHeader string) (*paymentdomain.PaymentEvent, fulfillmentdomain.Result, error) {
	if !s.enabled {
		return nil, fulfillmentdomain.Result{}, paymentdomain.ErrProviderDisabled
	}
	if len(payload) == 0 {
		return nil, fulfillmentdomain.Result{}, paymentdomain.NewVerificationError(paymentdomain.ReasonMalformed, errors.New("empty payload"))
	}

	ctx, span := tracing.StartSpan(ctx, "payment.webhook.ingest",
		attribute.String("payment.provider", s.provider),
	)
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	event, err := s.verifier.Verify(ctx, payload, signatureHeader)
	if err != nil {
		reason := "unknown"
		if vErr, ok := paymentdomain.AsVerificationError(err); ok {
			reason = string(vErr.Reason)
		}
		s.obsMetrics.RecordVerificationFailure(ctx, s.provider, reason)
		logger.WithContext(ctx, s.log).Warn("payment webhook rejected",
			zap.String("reason", reason),
			zap.Error(err),
		)
		return nil, fulfillmentdomain.Result{}, err
	}

	s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, event.EventType)
	log := logger.WithContext(ctx, s.log).With(
		zap.String("event_id", event.ProviderEventID),
		zap.String("event_type", event.EventType),
	)
	if !event.Completed() {
		log.Debug("payment webhook ignored")
		return event, fulfillmentdomain.Result{Outcome: fulfillmentdomain.OutcomeIgnored}, nil
	}

	log = log.With(zap.String("order_id", event.OrderID))
	result, err := s.fulfillment.Handle(ctx, event)
	if err != nil {
		log.Warn("fulfillment attempt did not complete",
			zap.String("outcome", string(result.Outcome)),
			zap.Error(err),
		)
		return event, result, err
	}

	log.Info("payment webhook handled", zap.String("outcome", string(result.Outcome)))
	return event, result, nil
}
