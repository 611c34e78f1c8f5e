package domain

import (
	"context"
	"errors"
)

// BuildRequest is the triple produced by the storefront form.
type BuildRequest struct {
	TierID     string `json:"tier_id"`
	TipCents   int64  `json:"tip_cents"`
	BuyerEmail string `json:"email"`
}

// OrderIntent travels only inside provider-echoed metadata.
type OrderIntent struct {
	OrderID    string `json:"order_id"`
	TierID     string `json:"tier_id"`
	PriceCents int64  `json:"price_cents"`
	TipCents   int64  `json:"tip_cents"`
	BuyerEmail string `json:"buyer_email"`
}

func (o OrderIntent) TotalCents() int64 {
	return o.PriceCents + o.TipCents
}

type LineItem struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	UnitAmountCents int64  `json:"unit_amount_cents"`
	Quantity        int64  `json:"quantity"`
}

func (l LineItem) AmountCents() int64 {
	return l.UnitAmountCents * l.Quantity
}

// CheckoutRequest is the provider-agnostic payload handed to a SessionCreator.
type CheckoutRequest struct {
	Intent     OrderIntent       `json:"intent"`
	Currency   string            `json:"currency"`
	LineItems  []LineItem        `json:"line_items"`
	Metadata   map[string]string `json:"metadata"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
}

func (r CheckoutRequest) TotalCents() int64 {
	var total int64
	for _, item := range r.LineItems {
		total += item.AmountCents()
	}
	return total
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type StartResponse struct {
	OrderID    string     `json:"order_id"`
	SessionID  string     `json:"session_id"`
	URL        string     `json:"url"`
	TotalCents int64      `json:"total_cents"`
	Currency   string     `json:"currency"`
	LineItems  []LineItem `json:"line_items"`
}

type Builder interface {
	Build(ctx context.Context, req BuildRequest) (*CheckoutRequest, error)
}

// SessionCreator performs the single outbound call to the payment provider.
type SessionCreator interface {
	CreateSession(ctx context.Context, req *CheckoutRequest) (*Session, error)
}

type Service interface {
	Builder
	Start(ctx context.Context, req BuildRequest) (*StartResponse, error)
}

const TipLineItemName = "Tip for Artist"

var (
	ErrInvalidTier      = errors.New("invalid_tier")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrSessionFailed    = errors.New("checkout_session_failed")
	ErrProviderDisabled = errors.New("checkout_provider_not_configured")
)
