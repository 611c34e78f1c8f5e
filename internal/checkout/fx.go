package checkout

import (
	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
	"github.com/smallbiznis/mysteryart/internal/checkout/service"
	"github.com/smallbiznis/mysteryart/internal/checkout/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout.service",
	fx.Provide(stripe.NewSessionCreator),
	fx.Provide(service.New),
	fx.Provide(func(s *service.Service) checkoutdomain.Service { return s }),
)
