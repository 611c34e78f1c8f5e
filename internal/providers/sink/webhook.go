package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/mysteryart/internal/config"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"go.uber.org/zap"
)

const (
	userAgent           = "Mystery-Artwork-Marketplace/1.0"
	defaultSecretHeader = "X-Zapier-Secret"
)

var ErrNotConfigured = errors.New("sink_not_configured")

// Webhook posts fulfillment payloads as JSON to the automation sink.
// Any non-2xx response is a failed dispatch.
type Webhook struct {
	client       *resty.Client
	url          string
	secret       string
	secretHeader string
	log          *zap.Logger
}

func NewWebhook(cfg config.Config, log *zap.Logger) *Webhook {
	sinkCfg := cfg.Sink
	timeout := sinkCfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	header := strings.TrimSpace(sinkCfg.SecretHeader)
	if header == "" {
		header = defaultSecretHeader
	}
	w := &Webhook{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent).
			SetHeader("Content-Type", "application/json"),
		url:          strings.TrimSpace(sinkCfg.URL),
		secret:       sinkCfg.Secret,
		secretHeader: header,
		log:          log.Named("sink.webhook"),
	}
	if w.url == "" {
		w.log.Warn("sink url not configured; notifications will fail")
	}
	return w
}

func (w *Webhook) Dispatch(ctx context.Context, payload *fulfillmentdomain.Payload) error {
	if w.url == "" {
		return ErrNotConfigured
	}
	if payload == nil {
		return errors.New("sink payload is nil")
	}

	req := w.client.R().
		SetContext(ctx).
		SetBody(payload)
	if w.secret != "" {
		req.SetHeader(w.secretHeader, w.secret)
	}

	start := time.Now()
	resp, err := req.Post(w.url)
	if err != nil {
		return fmt.Errorf("sink dispatch: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("sink dispatch: unexpected status %d", resp.StatusCode())
	}

	w.log.Info("sink notified",
		zap.String("order_id", payload.OrderID),
		zap.Int("status", resp.StatusCode()),
		zap.Bool("archive", payload.Archive != nil),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

var _ fulfillmentdomain.Sink = (*Webhook)(nil)
