package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookProviderPosts(t *testing.T) {
	var got slack.WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).PostMessage(context.Background(), &slack.WebhookMessage{Text: "order ord_1 exhausted"})
	require.NoError(t, err)
	assert.Equal(t, "order ord_1 exhausted", got.Text)
}

func TestWebhookProviderUnconfigured(t *testing.T) {
	err := NewWebhook(" ").PostMessage(context.Background(), &slack.WebhookMessage{Text: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestWebhookProviderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).PostMessage(context.Background(), &slack.WebhookMessage{Text: "x"})
	assert.Error(t, err)
}
