package alert

import (
	"context"
	"errors"
	"fmt"

	slackgo "github.com/slack-go/slack"
	"github.com/smallbiznis/mysteryart/internal/config"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/smallbiznis/mysteryart/internal/fulfillment/service"
	"github.com/smallbiznis/mysteryart/internal/providers/email"
	"github.com/smallbiznis/mysteryart/internal/providers/slack"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exhaustedTemplate = "fulfillment_exhausted"

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Slack  slack.Provider `optional:"true"`
	Email  email.Provider `optional:"true"`
}

// Alerter tells operators about orders that ran out of retries. It posts
// to every configured channel and reports the joined errors.
type Alerter struct {
	slack      slack.Provider
	email      email.Provider
	recipients []string
	log        *zap.Logger
}

func New(p Params) *Alerter {
	return &Alerter{
		slack:      p.Slack,
		email:      p.Email,
		recipients: p.Config.Alert.Recipients,
		log:        p.Log.Named("alert"),
	}
}

func (a *Alerter) AlertExhausted(ctx context.Context, record *fulfillmentdomain.Record) error {
	if record == nil {
		return nil
	}
	var errs []error

	if a.slack != nil {
		if err := a.slack.PostMessage(ctx, slackMessage(record)); err != nil {
			errs = append(errs, fmt.Errorf("slack: %w", err))
		}
	}
	if a.email != nil && len(a.recipients) > 0 {
		if err := a.email.SendTemplate(ctx, a.recipients, exhaustedTemplate, templateData(record)); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}

	a.log.Warn("fulfillment exhausted alert sent",
		zap.String("order_id", record.OrderID),
		zap.Int("attempts", record.Attempts),
		zap.Int("failed_channels", len(errs)),
	)
	return errors.Join(errs...)
}

func slackMessage(record *fulfillmentdomain.Record) *slackgo.WebhookMessage {
	return &slackgo.WebhookMessage{
		Text: fmt.Sprintf(":rotating_light: Fulfillment exhausted for order %s after %d attempts", record.OrderID, record.Attempts),
		Attachments: []slackgo.Attachment{
			{
				Color: "danger",
				Fields: []slackgo.AttachmentField{
					{Title: "Tier", Value: record.TierID, Short: true},
					{Title: "Total", Value: service.FormatCents(record.TotalCents()), Short: true},
					{Title: "Failure", Value: string(record.FailureReason), Short: true},
					{Title: "Last error", Value: lastError(record)},
				},
			},
		},
	}
}

func templateData(record *fulfillmentdomain.Record) map[string]interface{} {
	return map[string]interface{}{
		"subject":        fmt.Sprintf("Fulfillment exhausted: %s", record.OrderID),
		"order_id":       record.OrderID,
		"attempts":       record.Attempts,
		"tier_id":        record.TierID,
		"total":          service.FormatCents(record.TotalCents()),
		"currency":       record.Currency,
		"buyer_email":    record.BuyerEmail,
		"failure_reason": string(record.FailureReason),
		"last_error":     lastError(record),
	}
}

func lastError(record *fulfillmentdomain.Record) string {
	if record.LastError == nil {
		return ""
	}
	return *record.LastError
}

var _ fulfillmentdomain.Alerter = (*Alerter)(nil)
