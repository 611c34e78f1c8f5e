package stripe

import (
	"context"
	"strings"

	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
	"github.com/smallbiznis/mysteryart/internal/config"
	"go.uber.org/zap"
)

// SessionCreator opens hosted Stripe Checkout sessions.
type SessionCreator struct {
	api *client.API
	log *zap.Logger
}

func NewSessionCreator(cfg config.Config, log *zap.Logger) checkoutdomain.SessionCreator {
	creator := &SessionCreator{log: log.Named("checkout.stripe")}
	key := strings.TrimSpace(cfg.Stripe.SecretKey)
	if key == "" {
		creator.log.Warn("stripe secret key not configured, checkout sessions disabled")
		return creator
	}

	var api client.API
	api.Init(key, nil)
	creator.api = &api
	return creator
}

func (c *SessionCreator) CreateSession(ctx context.Context, req *checkoutdomain.CheckoutRequest) (*checkoutdomain.Session, error) {
	if c.api == nil {
		return nil, checkoutdomain.ErrProviderDisabled
	}

	params := SessionParams(req)
	params.Context = ctx

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		if stripeErr, ok := err.(*stripego.Error); ok {
			c.log.Warn("stripe rejected checkout session",
				zap.String("order_id", req.Intent.OrderID),
				zap.String("code", string(stripeErr.Code)),
				zap.String("request_id", stripeErr.RequestID),
			)
		}
		return nil, err
	}

	return &checkoutdomain.Session{ID: session.ID, URL: session.URL}, nil
}

// SessionParams converts a provider-agnostic request into Stripe parameters.
func SessionParams(req *checkoutdomain.CheckoutRequest) *stripego.CheckoutSessionParams {
	items := make([]*stripego.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		product := &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripego.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripego.String(item.Description)
		}
		items = append(items, &stripego.CheckoutSessionLineItemParams{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripego.String(req.Currency),
				ProductData: product,
				UnitAmount:  stripego.Int64(item.UnitAmountCents),
			},
			Quantity: stripego.Int64(item.Quantity),
		})
	}

	intentMetadata := make(map[string]string, len(req.Metadata))
	for key, value := range req.Metadata {
		intentMetadata[key] = value
	}

	params := &stripego.CheckoutSessionParams{
		Mode:               stripego.String(string(stripego.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripego.StringSlice([]string{string(stripego.PaymentMethodTypeCard)}),
		LineItems:          items,
		SuccessURL:         stripego.String(req.SuccessURL),
		CancelURL:          stripego.String(req.CancelURL),
		ClientReferenceID:  stripego.String(req.Intent.OrderID),
		PaymentIntentData: &stripego.CheckoutSessionPaymentIntentDataParams{
			Metadata: intentMetadata,
		},
	}
	if req.Intent.BuyerEmail != "" {
		params.CustomerEmail = stripego.String(req.Intent.BuyerEmail)
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	return params
}
