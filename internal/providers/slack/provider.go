package slack

import (
	"context"
	"errors"
	"strings"

	"github.com/slack-go/slack"
)

var ErrNotConfigured = errors.New("slack_not_configured")

type Provider interface {
	PostMessage(ctx context.Context, message *slack.WebhookMessage) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, message *slack.WebhookMessage) error {
	return nil
}

// WebhookProvider posts to a Slack incoming webhook.
type WebhookProvider struct {
	url string
}

func NewWebhook(url string) *WebhookProvider {
	return &WebhookProvider{url: strings.TrimSpace(url)}
}

func (p *WebhookProvider) PostMessage(ctx context.Context, message *slack.WebhookMessage) error {
	if p.url == "" {
		return ErrNotConfigured
	}
	return slack.PostWebhookContext(ctx, p.url, message)
}
