package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
)

type EventKind string

const (
	KindCompleted EventKind = "completed"
	KindOther     EventKind = "other"
)

// PaymentEvent is the verified, parsed form of an inbound provider
// notification. It is never mutated after the verifier returns it.
type PaymentEvent struct {
	Kind            EventKind
	Provider        string
	ProviderEventID string
	EventType       string
	OrderID         string
	AmountPaidCents int64
	Currency        string
	BuyerEmail      string
	RawMetadata     map[string]string
	// Intent is decoded from RawMetadata and only set for completed events.
	Intent     checkoutdomain.OrderIntent
	OccurredAt time.Time
}

func (e *PaymentEvent) Completed() bool {
	return e != nil && e.Kind == KindCompleted
}

type Verifier interface {
	Verify(ctx context.Context, rawBody []byte, signatureHeader string) (*PaymentEvent, error)
}

type VerificationReason string

const (
	ReasonBadSignature   VerificationReason = "bad_signature"
	ReasonMalformed      VerificationReason = "malformed"
	ReasonStaleTimestamp VerificationReason = "stale_timestamp"
)

// ErrProviderDisabled is returned when no webhook secret is configured.
var ErrProviderDisabled = errors.New("payment_provider_disabled")

var (
	ErrBadSignature   = errors.New("bad_signature")
	ErrMalformed      = errors.New("malformed")
	ErrStaleTimestamp = errors.New("stale_timestamp")
)

// VerificationError is permanent for a given payload: redelivering the same
// bytes fails the same way.
type VerificationError struct {
	Reason VerificationReason
	Err    error
}

func NewVerificationError(reason VerificationReason, err error) *VerificationError {
	return &VerificationError{Reason: reason, Err: err}
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment verification failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("payment verification failed (%s)", e.Reason)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

func (e *VerificationError) Is(target error) bool {
	switch target {
	case ErrBadSignature:
		return e.Reason == ReasonBadSignature
	case ErrMalformed:
		return e.Reason == ReasonMalformed
	case ErrStaleTimestamp:
		return e.Reason == ReasonStaleTimestamp
	}
	return false
}

// AsVerificationError returns the VerificationError in err's chain, if any.
func AsVerificationError(err error) (*VerificationError, bool) {
	var vErr *VerificationError
	if errors.As(err, &vErr) && vErr != nil {
		return vErr, true
	}
	return nil, false
}
