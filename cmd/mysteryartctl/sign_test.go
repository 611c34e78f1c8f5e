package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
	"github.com/smallbiznis/mysteryart/internal/clock"
	"github.com/smallbiznis/mysteryart/internal/config"
	"github.com/smallbiznis/mysteryart/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/mysteryart/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleCompletedEventVerifies(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	payload, err := sampleCompletedEvent(checkoutdomain.OrderIntent{
		OrderID:    "ord_local",
		TierID:     "discovery",
		PriceCents: 1000,
		TipCents:   500,
		BuyerEmail: "buyer@example.com",
	}, now)
	require.NoError(t, err)
	require.True(t, json.Valid(payload))

	cfg := config.Config{}
	cfg.Stripe.WebhookSecret = "whsec_local"
	verifier := stripe.NewVerifier(cfg, clock.NewFakeClock(now))

	event, err := verifier.Verify(context.Background(), payload, stripe.SignatureHeaderValue("whsec_local", payload, now))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.KindCompleted, event.Kind)
	assert.Equal(t, "ord_local", event.OrderID)
	assert.Equal(t, int64(1500), event.AmountPaidCents)
}

func TestSignCommandPrintsHeader(t *testing.T) {
	cmd := signCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--secret", "whsec_local", "--order", "ord_cli"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Stripe-Signature: t=")
	assert.Contains(t, out.String(), ",v1=")
}
