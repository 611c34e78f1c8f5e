package stripe

import (
	"context"
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
	"github.com/smallbiznis/mysteryart/internal/checkout/metadata"
	"github.com/smallbiznis/mysteryart/internal/clock"
	"github.com/smallbiznis/mysteryart/internal/config"
	paymentdomain "github.com/smallbiznis/mysteryart/internal/payment/domain"
)

const (
	Provider        = "stripe"
	SignatureHeader = "Stripe-Signature"

	DefaultTolerance = 5 * time.Minute

	eventCheckoutCompleted    = "checkout.session.completed"
	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// Verifier authenticates Stripe webhook deliveries and parses them into
// payment events.
type Verifier struct {
	webhookSecret string
	tolerance     time.Duration
	clock         clock.Clock
}

func NewVerifier(cfg config.Config, clk clock.Clock) *Verifier {
	tolerance := cfg.Stripe.SignatureTolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{
		webhookSecret: strings.TrimSpace(cfg.Stripe.WebhookSecret),
		tolerance:     tolerance,
		clock:         clk,
	}
}

func ProvideVerifier(cfg config.Config, clk clock.Clock) paymentdomain.Verifier {
	return NewVerifier(cfg, clk)
}

// Verify checks the signature first, then the timestamp window, and only
// then parses the envelope, so unauthenticated bytes are never decoded.
func (v *Verifier) Verify(ctx context.Context, payload []byte, sigHeader string) (*paymentdomain.PaymentEvent, error) {
	if v.webhookSecret == "" {
		return nil, paymentdomain.NewVerificationError(paymentdomain.ReasonBadSignature, errors.New("webhook secret not configured"))
	}

	signedAt, signatures, err := parseStripeSignature(strings.TrimSpace(sigHeader))
	if err != nil {
		return nil, paymentdomain.NewVerificationError(paymentdomain.ReasonBadSignature, err)
	}

	expected := webhook.ComputeSignature(signedAt, payload, v.webhookSecret)
	if !anySignatureMatches(signatures, expected) {
		return nil, paymentdomain.NewVerificationError(paymentdomain.ReasonBadSignature, nil)
	}

	if v.tolerance > 0 {
		age := v.clock.Now().Sub(signedAt)
		if age < 0 {
			age = -age
		}
		if age > v.tolerance {
			return nil, paymentdomain.NewVerificationError(paymentdomain.ReasonStaleTimestamp,
				fmt.Errorf("signed %s ago, tolerance %s", age.Round(time.Second), v.tolerance))
		}
	}

	return v.Parse(ctx, payload)
}

// Parse decodes an already authenticated payload.
func (v *Verifier) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event stripego.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, malformed(err)
	}
	eventType := strings.TrimSpace(string(event.Type))
	if strings.TrimSpace(event.ID) == "" || eventType == "" {
		return nil, malformed(errors.New("event id and type are required"))
	}

	out := &paymentdomain.PaymentEvent{
		Kind:            paymentdomain.KindOther,
		Provider:        Provider,
		ProviderEventID: event.ID,
		EventType:       eventType,
		OccurredAt:      timestamp(event.Created, v.clock),
	}

	switch eventType {
	case eventCheckoutCompleted, eventAsyncPaymentSucceeded:
		return v.parseCheckoutSession(event, out)
	default:
		return out, nil
	}
}

func (v *Verifier) parseCheckoutSession(event stripego.Event, out *paymentdomain.PaymentEvent) (*paymentdomain.PaymentEvent, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, malformed(errors.New("event data is empty"))
	}
	var session stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, malformed(err)
	}

	// A completed session paid by a delayed method is confirmed later by
	// async_payment_succeeded, so it is not a payment confirmation yet.
	if out.EventType == eventCheckoutCompleted && !isPaid(session.PaymentStatus) {
		return out, nil
	}

	intent, err := metadata.Decode(session.Metadata)
	if err != nil {
		return nil, malformed(err)
	}
	if ref := strings.TrimSpace(session.ClientReferenceID); ref != "" && ref != intent.OrderID {
		return nil, malformed(fmt.Errorf("client reference %q does not match order %q", ref, intent.OrderID))
	}

	email := intent.BuyerEmail
	if email == "" && session.CustomerDetails != nil {
		email = strings.TrimSpace(session.CustomerDetails.Email)
	}
	if email == "" {
		email = strings.TrimSpace(session.CustomerEmail)
	}
	intent.BuyerEmail = email

	out.Kind = paymentdomain.KindCompleted
	out.OrderID = intent.OrderID
	out.AmountPaidCents = session.AmountTotal
	out.Currency = strings.ToUpper(strings.TrimSpace(string(session.Currency)))
	out.BuyerEmail = email
	out.RawMetadata = copyMetadata(session.Metadata)
	out.Intent = intent
	return out, nil
}

func isPaid(status stripego.CheckoutSessionPaymentStatus) bool {
	switch status {
	case stripego.CheckoutSessionPaymentStatusPaid, stripego.CheckoutSessionPaymentStatusNoPaymentRequired:
		return true
	default:
		return false
	}
}

func anySignatureMatches(signatures []string, expected []byte) bool {
	matched := false
	for _, signature := range signatures {
		decoded, err := hex.DecodeString(signature)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			matched = true
		}
	}
	return matched
}

func parseStripeSignature(header string) (time.Time, []string, error) {
	parts := strings.Split(header, ",")
	var rawTimestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			rawTimestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if rawTimestamp == "" || len(signatures) == 0 {
		return time.Time{}, nil, errors.New("invalid_signature_header")
	}
	unix, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return time.Time{}, nil, errors.New("invalid_signature_timestamp")
	}
	return time.Unix(unix, 0).UTC(), signatures, nil
}

func timestamp(created int64, clk clock.Clock) time.Time {
	if created == 0 {
		return clk.Now().UTC()
	}
	return time.Unix(created, 0).UTC()
}

func copyMetadata(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for key, value := range md {
		out[key] = value
	}
	return out
}

func malformed(err error) error {
	return paymentdomain.NewVerificationError(paymentdomain.ReasonMalformed, err)
}

// SignatureHeaderValue builds a Stripe-Signature header for payload, used by
// the operator CLI to replay deliveries locally.
func SignatureHeaderValue(secret string, payload []byte, signedAt time.Time) string {
	sig := webhook.ComputeSignature(signedAt, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", signedAt.Unix(), hex.EncodeToString(sig))
}
