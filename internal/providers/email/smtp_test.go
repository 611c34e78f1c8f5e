package email

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/smallbiznis/mysteryart/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTemplateRendersExhaustedAlert(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	p := NewSMTP(Config{Host: "smtp.example.com", Port: 2525, From: "ops@mysteryart.local"})
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.Nil(t, a)
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"ops@example.com"}, "fulfillment_exhausted", map[string]interface{}{
		"subject":  "Fulfillment exhausted: ord_1",
		"order_id": "ord_1",
		"attempts": 5,
		"tier_id":  "discovery",
		"total":    "15.00",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, "ops@mysteryart.local", gotFrom)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Fulfillment exhausted: ord_1")
	assert.Contains(t, string(gotMsg), "<strong>ord_1</strong>")
	assert.Contains(t, string(gotMsg), "after 5 attempts")
}

func TestSendRequiresRecipients(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.example.com", Port: 25})
	assert.ErrorIs(t, p.Send(context.Background(), nil, "s", "b"), ErrNoRecipients)
}

func TestNewFromConfigWithoutHostIsNoOp(t *testing.T) {
	_, ok := NewFromConfig(config.Config{}).(*NoOpProvider)
	assert.True(t, ok)
}
