package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("order_id", "ord_123"),
		attribute.String("buyer_email", "a@b.c"),
		attribute.String("outcome", "fulfilled"),
		attribute.String("tier_id", "discovery"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "order_id" || attr.Key == "buyer_email" {
			t.Fatalf("expected %s to be dropped", attr.Key)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordCheckout(ctx, "discovery", "created")
	m.RecordPaymentEvent(ctx, "stripe", "checkout.session.completed")
	m.RecordVerificationFailure(ctx, "stripe", "bad_signature")
	m.RecordFulfillment(ctx, "fulfilled")
	m.RecordDispatch(ctx, "delivered")
	m.RecordRateLimitAllowed(ctx, "checkout")
	m.RecordRateLimitDenied(ctx, "checkout", "burst")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "mysteryart"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordFulfillment(context.Background(), "fulfilled")
}
