package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/mysteryart/internal/config"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWebhook(url, secret string) *Webhook {
	return NewWebhook(config.Config{Sink: config.SinkConfig{URL: url, Secret: secret}}, zap.NewNop())
}

func TestDispatchPostsPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "shh", r.Header.Get("X-Zapier-Secret"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := &fulfillmentdomain.Payload{
		OrderID:       "ord_1",
		Tier:          "discovery",
		Total:         "15.00",
		CustomerEmail: "buyer@example.com",
		ImageFile:     fulfillmentdomain.ImageFile{Filename: "mystery-artwork-1.jpg", PexelsID: "1"},
	}
	require.NoError(t, newTestWebhook(srv.URL, "shh").Dispatch(context.Background(), payload))

	assert.Equal(t, "ord_1", got["orderId"])
	assert.Equal(t, "15.00", got["total"])
	assert.Equal(t, "buyer@example.com", got["customerEmail"])
	assert.NotContains(t, got, "archive")
}

func TestDispatchNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newTestWebhook(srv.URL, "").Dispatch(context.Background(), &fulfillmentdomain.Payload{OrderID: "ord_1"})
	assert.ErrorContains(t, err, "502")
}

func TestDispatchUnconfigured(t *testing.T) {
	err := newTestWebhook("", "").Dispatch(context.Background(), &fulfillmentdomain.Payload{OrderID: "ord_1"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
