package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
	"github.com/smallbiznis/mysteryart/internal/checkout/metadata"
	"github.com/smallbiznis/mysteryart/internal/clock"
	"github.com/smallbiznis/mysteryart/internal/config"
	obsmetrics "github.com/smallbiznis/mysteryart/internal/observability/metrics"
	tierdomain "github.com/smallbiznis/mysteryart/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const orderIDPrefix = "ord_"

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Catalog    tierdomain.Catalog
	Clock      clock.Clock
	Sessions   checkoutdomain.SessionCreator `optional:"true"`
	ObsMetrics *obsmetrics.Metrics           `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	catalog    tierdomain.Catalog
	clock      clock.Clock
	sessions   checkoutdomain.SessionCreator
	obsMetrics *obsmetrics.Metrics
	validate   *validator.Validate

	currency    string
	successURL  string
	cancelURL   string
	maxTipCents int64
	compact     bool
}

func New(p Params) *Service {
	currency := strings.ToLower(strings.TrimSpace(p.Config.Stripe.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		log:         p.Log.Named("checkout.service"),
		catalog:     p.Catalog,
		clock:       p.Clock,
		sessions:    p.Sessions,
		obsMetrics:  p.ObsMetrics,
		validate:    validator.New(),
		currency:    currency,
		successURL:  p.Config.Stripe.SuccessURL,
		cancelURL:   p.Config.Stripe.CancelURL,
		maxTipCents: p.Config.Checkout.MaxTipCents,
		compact:     p.Config.Checkout.CompactMetadata,
	}
}

// Build validates the buyer's selection and assembles the provider request.
// It has no side effects beyond minting the order id.
func (s *Service) Build(ctx context.Context, req checkoutdomain.BuildRequest) (*checkoutdomain.CheckoutRequest, error) {
	tier, err := s.catalog.Lookup(req.TierID)
	if err != nil {
		if errors.Is(err, tierdomain.ErrNotFound) {
			return nil, checkoutdomain.ErrInvalidTier
		}
		return nil, err
	}

	if req.TipCents < 0 {
		return nil, checkoutdomain.ErrInvalidAmount
	}
	if s.maxTipCents > 0 && req.TipCents > s.maxTipCents {
		return nil, checkoutdomain.ErrInvalidAmount
	}
	if req.TipCents > math.MaxInt64-tier.PriceCents {
		return nil, checkoutdomain.ErrInvalidAmount
	}

	email := strings.TrimSpace(req.BuyerEmail)
	if email != "" {
		if err := s.validate.Var(email, "email"); err != nil {
			return nil, checkoutdomain.ErrInvalidEmail
		}
	}

	orderID, err := s.newOrderID()
	if err != nil {
		return nil, err
	}

	intent := checkoutdomain.OrderIntent{
		OrderID:    orderID,
		TierID:     tier.ID,
		PriceCents: tier.PriceCents,
		TipCents:   req.TipCents,
		BuyerEmail: email,
	}

	items := []checkoutdomain.LineItem{{
		Name:            tier.Title,
		Description:     tier.Description,
		UnitAmountCents: tier.PriceCents,
		Quantity:        1,
	}}
	if req.TipCents > 0 {
		items = append(items, checkoutdomain.LineItem{
			Name:            checkoutdomain.TipLineItemName,
			Description:     "100% goes directly to the artist",
			UnitAmountCents: req.TipCents,
			Quantity:        1,
		})
	}

	md, err := metadata.Encode(intent, s.compact)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	return &checkoutdomain.CheckoutRequest{
		Intent:     intent,
		Currency:   s.currency,
		LineItems:  items,
		Metadata:   md,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	}, nil
}

// Start builds the request and opens a hosted checkout session for it.
func (s *Service) Start(ctx context.Context, req checkoutdomain.BuildRequest) (*checkoutdomain.StartResponse, error) {
	built, err := s.Build(ctx, req)
	if err != nil {
		s.obsMetrics.RecordCheckout(ctx, req.TierID, "rejected")
		return nil, err
	}
	if s.sessions == nil {
		return nil, checkoutdomain.ErrProviderDisabled
	}

	session, err := s.sessions.CreateSession(ctx, built)
	if err != nil {
		s.log.Error("create checkout session failed",
			zap.String("order_id", built.Intent.OrderID),
			zap.String("tier_id", built.Intent.TierID),
			zap.Error(err),
		)
		s.obsMetrics.RecordCheckout(ctx, built.Intent.TierID, "provider_error")
		if errors.Is(err, checkoutdomain.ErrProviderDisabled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", checkoutdomain.ErrSessionFailed, err)
	}

	s.log.Info("checkout session created",
		zap.String("order_id", built.Intent.OrderID),
		zap.String("tier_id", built.Intent.TierID),
		zap.String("session_id", session.ID),
		zap.Int64("total_cents", built.TotalCents()),
	)
	s.obsMetrics.RecordCheckout(ctx, built.Intent.TierID, "created")

	return &checkoutdomain.StartResponse{
		OrderID:    built.Intent.OrderID,
		SessionID:  session.ID,
		URL:        session.URL,
		TotalCents: built.TotalCents(),
		Currency:   built.Currency,
		LineItems:  built.LineItems,
	}, nil
}

func (s *Service) newOrderID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(s.clock.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("mint order id: %w", err)
	}
	return orderIDPrefix + strings.ToLower(id.String()), nil
}
