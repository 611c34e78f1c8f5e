package stripe

import (
	"context"
	"errors"
	"testing"

	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
	"github.com/smallbiznis/mysteryart/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionParams(t *testing.T) {
	req := &checkoutdomain.CheckoutRequest{
		Intent: checkoutdomain.OrderIntent{
			OrderID:    "ord_abc",
			TierID:     "discovery",
			PriceCents: 1000,
			TipCents:   500,
			BuyerEmail: "buyer@example.com",
		},
		Currency: "usd",
		LineItems: []checkoutdomain.LineItem{
			{Name: "Discovery Collection", Description: "Starter", UnitAmountCents: 1000, Quantity: 1},
			{Name: checkoutdomain.TipLineItemName, UnitAmountCents: 500, Quantity: 1},
		},
		Metadata:   map[string]string{"order_id": "ord_abc", "tier_id": "discovery"},
		SuccessURL: "https://shop.example/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://shop.example/",
	}

	params := SessionParams(req)

	assert.Equal(t, "payment", *params.Mode)
	assert.Equal(t, "ord_abc", *params.ClientReferenceID)
	assert.Equal(t, "buyer@example.com", *params.CustomerEmail)
	require.Len(t, params.LineItems, 2)
	assert.Equal(t, int64(1000), *params.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "Starter", *params.LineItems[0].PriceData.ProductData.Description)
	assert.Nil(t, params.LineItems[1].PriceData.ProductData.Description)
	assert.Equal(t, checkoutdomain.TipLineItemName, *params.LineItems[1].PriceData.ProductData.Name)
	assert.Equal(t, "ord_abc", params.Metadata["order_id"])
	assert.Equal(t, "discovery", params.PaymentIntentData.Metadata["tier_id"])
}

func TestCreateSessionWithoutKey(t *testing.T) {
	creator := NewSessionCreator(config.Config{}, zap.NewNop())
	_, err := creator.CreateSession(context.Background(), &checkoutdomain.CheckoutRequest{})
	assert.True(t, errors.Is(err, checkoutdomain.ErrProviderDisabled))
}
