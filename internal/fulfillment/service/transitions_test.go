package service

import (
	"testing"

	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/stretchr/testify/assert"
)

func TestTransitions(t *testing.T) {
	cases := []struct {
		name     string
		from     fulfillmentdomain.Status
		attempts int
		trigger  string
		want     fulfillmentdomain.Status
		wantErr  bool
	}{
		{name: "package", from: fulfillmentdomain.StatusPending, trigger: triggerPackage, want: fulfillmentdomain.StatusPackaged},
		{name: "pending fails", from: fulfillmentdomain.StatusPending, trigger: triggerFail, want: fulfillmentdomain.StatusFailed},
		{name: "notify", from: fulfillmentdomain.StatusPackaged, trigger: triggerNotify, want: fulfillmentdomain.StatusNotified},
		{name: "packaged fails", from: fulfillmentdomain.StatusPackaged, trigger: triggerFail, want: fulfillmentdomain.StatusFailed},
		{name: "retry under budget", from: fulfillmentdomain.StatusFailed, attempts: 2, trigger: triggerRetry, want: fulfillmentdomain.StatusPending},
		{name: "retry at budget", from: fulfillmentdomain.StatusFailed, attempts: 3, trigger: triggerRetry, wantErr: true},
		{name: "notify from pending", from: fulfillmentdomain.StatusPending, trigger: triggerNotify, wantErr: true},
		{name: "notified is terminal", from: fulfillmentdomain.StatusNotified, trigger: triggerFail, wantErr: true},
		{name: "no repackage", from: fulfillmentdomain.StatusNotified, trigger: triggerPackage, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := &fulfillmentdomain.Record{Status: tc.from, Attempts: tc.attempts}
			err := transition(record, tc.trigger, 3)
			if tc.wantErr {
				assert.ErrorIs(t, err, fulfillmentdomain.ErrInvalidTransition)
				assert.Equal(t, tc.from, record.Status)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, record.Status)
		})
	}
}
