package service

import (
	"context"
	"fmt"

	"github.com/qmuntal/stateless"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
)

const (
	triggerPackage = "package"
	triggerNotify  = "notify"
	triggerFail    = "fail"
	triggerRetry   = "retry"
)

// newStateMachine describes the record lifecycle:
//
//	pending -> packaged -> notified
//	pending|packaged -> failed
//	failed -> pending while attempts < maxAttempts
func newStateMachine(record *fulfillmentdomain.Record, maxAttempts int) *stateless.StateMachine {
	sm := stateless.NewStateMachine(record.Status)

	sm.Configure(fulfillmentdomain.StatusPending).
		Permit(triggerPackage, fulfillmentdomain.StatusPackaged).
		Permit(triggerFail, fulfillmentdomain.StatusFailed)

	sm.Configure(fulfillmentdomain.StatusPackaged).
		Permit(triggerNotify, fulfillmentdomain.StatusNotified).
		Permit(triggerFail, fulfillmentdomain.StatusFailed)

	sm.Configure(fulfillmentdomain.StatusFailed).
		Permit(triggerRetry, fulfillmentdomain.StatusPending, func(_ context.Context, _ ...any) bool {
			return record.Attempts < maxAttempts
		})

	sm.Configure(fulfillmentdomain.StatusNotified)

	return sm
}

func transition(record *fulfillmentdomain.Record, trigger string, maxAttempts int) error {
	sm := newStateMachine(record, maxAttempts)
	if err := sm.Fire(trigger); err != nil {
		return fmt.Errorf("%w: %s from %s", fulfillmentdomain.ErrInvalidTransition, trigger, record.Status)
	}
	record.Status = sm.MustState().(fulfillmentdomain.Status)
	return nil
}
