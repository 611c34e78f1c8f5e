package payment

import (
	"github.com/smallbiznis/mysteryart/internal/payment/adapters/stripe"
	"github.com/smallbiznis/mysteryart/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(stripe.ProvideVerifier),
	fx.Provide(webhook.NewService),
)
