package alert

import (
	"strings"

	"github.com/smallbiznis/mysteryart/internal/config"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/smallbiznis/mysteryart/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.alert",
	fx.Provide(provideSlack),
	fx.Provide(New),
	fx.Provide(func(a *Alerter) fulfillmentdomain.Alerter { return a }),
)

func provideSlack(cfg config.Config) slack.Provider {
	if strings.TrimSpace(cfg.Alert.SlackWebhookURL) == "" {
		return &slack.NoOpProvider{}
	}
	return slack.NewWebhook(cfg.Alert.SlackWebhookURL)
}
