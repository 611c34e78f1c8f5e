package email

import (
	"strings"

	"github.com/smallbiznis/mysteryart/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns a no-op provider when no SMTP host is configured.
func NewFromConfig(cfg config.Config) Provider {
	if strings.TrimSpace(cfg.Alert.SMTPHost) == "" {
		return &NoOpProvider{}
	}
	return NewSMTP(Config{
		Host:     cfg.Alert.SMTPHost,
		Port:     cfg.Alert.SMTPPort,
		Username: cfg.Alert.SMTPUsername,
		Password: cfg.Alert.SMTPPassword,
		From:     cfg.Alert.SMTPFrom,
	})
}
