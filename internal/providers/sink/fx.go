package sink

import (
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.sink",
	fx.Provide(NewWebhook),
	fx.Provide(func(w *Webhook) fulfillmentdomain.Sink { return w }),
)
