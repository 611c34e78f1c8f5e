package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/mysteryart/internal/checkout/metadata"
	"github.com/smallbiznis/mysteryart/internal/clock"
	"github.com/smallbiznis/mysteryart/internal/config"
	paymentdomain "github.com/smallbiznis/mysteryart/internal/payment/domain"
)

const testSecret = "whsec_test"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestVerifier() *Verifier {
	cfg := config.Config{}
	cfg.Stripe.WebhookSecret = testSecret
	return NewVerifier(cfg, clock.NewFakeClock(testNow))
}

func checkoutCompletedPayload(t *testing.T, paymentStatus string, md map[string]string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":      "evt_1",
		"object":  "event",
		"type":    "checkout.session.completed",
		"created": testNow.Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":                  "cs_test_1",
				"object":              "checkout.session",
				"amount_total":        1500,
				"currency":            "usd",
				"payment_status":      paymentStatus,
				"client_reference_id": md[metadata.KeyOrderID],
				"customer_details":    map[string]any{"email": "details@example.com"},
				"metadata":            md,
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return body
}

func discoveryMetadata() map[string]string {
	return map[string]string{
		metadata.KeyOrderID:    "ord_123",
		metadata.KeyTierID:     "discovery",
		metadata.KeyPriceCents: "1000",
		metadata.KeyTipCents:   "500",
		metadata.KeyBuyerEmail: "buyer@example.com",
	}
}

func TestVerifyCompletedCheckout(t *testing.T) {
	verifier := newTestVerifier()
	payload := checkoutCompletedPayload(t, "paid", discoveryMetadata())
	header := SignatureHeaderValue(testSecret, payload, testNow)

	event, err := verifier.Verify(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}
	if event.Kind != paymentdomain.KindCompleted {
		t.Fatalf("expected completed kind, got %s", event.Kind)
	}
	if event.OrderID != "ord_123" || event.AmountPaidCents != 1500 || event.Currency != "USD" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.BuyerEmail != "buyer@example.com" {
		t.Fatalf("expected metadata email to win, got %q", event.BuyerEmail)
	}
	if event.Intent.TotalCents() != 1500 {
		t.Fatalf("expected intent total 1500, got %d", event.Intent.TotalCents())
	}
	if event.RawMetadata[metadata.KeyTierID] != "discovery" {
		t.Fatalf("expected raw metadata to be carried")
	}
}

func TestVerifyRejectsTamperedBodyAndWrongSecret(t *testing.T) {
	verifier := newTestVerifier()
	payload := checkoutCompletedPayload(t, "paid", discoveryMetadata())
	header := SignatureHeaderValue(testSecret, payload, testNow)

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = ' '

	cases := map[string]struct {
		body   []byte
		header string
	}{
		"tampered body":    {body: tampered, header: header},
		"wrong secret":     {body: payload, header: SignatureHeaderValue("whsec_other", payload, testNow)},
		"missing header":   {body: payload, header: ""},
		"garbage header":   {body: payload, header: "nonsense"},
		"non-hex v1":       {body: payload, header: "t=1772366400,v1=zz"},
		"timestamp change": {body: payload, header: SignatureHeaderValue(testSecret, payload, testNow.Add(time.Second))[:12] + header[12:]},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			event, err := verifier.Verify(context.Background(), tc.body, tc.header)
			if event != nil {
				t.Fatalf("expected no event, got %+v", event)
			}
			if !errors.Is(err, paymentdomain.ErrBadSignature) {
				t.Fatalf("expected bad signature, got %v", err)
			}
		})
	}
}

func TestVerifyStaleTimestamp(t *testing.T) {
	verifier := newTestVerifier()
	payload := checkoutCompletedPayload(t, "paid", discoveryMetadata())
	header := SignatureHeaderValue(testSecret, payload, testNow.Add(-10*time.Minute))

	_, err := verifier.Verify(context.Background(), payload, header)
	if !errors.Is(err, paymentdomain.ErrStaleTimestamp) {
		t.Fatalf("expected stale timestamp, got %v", err)
	}
	vErr, ok := paymentdomain.AsVerificationError(err)
	if !ok || vErr.Reason != paymentdomain.ReasonStaleTimestamp {
		t.Fatalf("expected verification error with stale reason, got %v", err)
	}
}

func TestVerifyMalformedBody(t *testing.T) {
	verifier := newTestVerifier()
	payload := []byte(`{"id":`)
	header := SignatureHeaderValue(testSecret, payload, testNow)

	_, err := verifier.Verify(context.Background(), payload, header)
	if !errors.Is(err, paymentdomain.ErrMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestVerifyCompletedWithoutOrderMetadataIsMalformed(t *testing.T) {
	verifier := newTestVerifier()
	payload := checkoutCompletedPayload(t, "paid", map[string]string{"tier_id": "discovery"})
	header := SignatureHeaderValue(testSecret, payload, testNow)

	_, err := verifier.Verify(context.Background(), payload, header)
	if !errors.Is(err, paymentdomain.ErrMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestVerifyOtherKinds(t *testing.T) {
	verifier := newTestVerifier()

	unpaid := checkoutCompletedPayload(t, "unpaid", discoveryMetadata())
	event, err := verifier.Verify(context.Background(), unpaid, SignatureHeaderValue(testSecret, unpaid, testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Kind != paymentdomain.KindOther {
		t.Fatalf("unpaid session must not be completed")
	}

	unknown := []byte(`{"id":"evt_2","object":"event","type":"customer.created","created":1,"data":{"object":{}}}`)
	event, err = verifier.Verify(context.Background(), unknown, SignatureHeaderValue(testSecret, unknown, testNow))
	if err != nil {
		t.Fatalf("unknown event types are not errors: %v", err)
	}
	if event.Kind != paymentdomain.KindOther || event.EventType != "customer.created" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestVerifyWithoutSecret(t *testing.T) {
	verifier := NewVerifier(config.Config{}, clock.NewFakeClock(testNow))
	payload := checkoutCompletedPayload(t, "paid", discoveryMetadata())
	_, err := verifier.Verify(context.Background(), payload, SignatureHeaderValue("", payload, testNow))
	if !errors.Is(err, paymentdomain.ErrBadSignature) {
		t.Fatalf("expected bad signature without configured secret, got %v", err)
	}
}
