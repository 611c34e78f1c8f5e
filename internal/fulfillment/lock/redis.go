package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/smallbiznis/mysteryart/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	keyOrderLock   = "mysteryart:fulfillment:lock:%s"
	defaultLockTTL = 2 * time.Minute
	lockPoll       = 100 * time.Millisecond
)

// Redis serializes work per order id across instances. The key expires
// after ttl so a crashed holder cannot wedge an order.
type Redis struct {
	locker *ratelimit.Locker
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedis(locker *ratelimit.Locker, ttl time.Duration, log *zap.Logger) (*Redis, error) {
	if locker == nil {
		return nil, errors.New("redis locker requires a redis client")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Redis{locker: locker, ttl: ttl, log: log.Named("fulfillment.lock")}, nil
}

func (r *Redis) Acquire(ctx context.Context, orderID string) (func(), error) {
	key := fmt.Sprintf(keyOrderLock, orderID)
	token, err := r.locker.Lock(ctx, key, r.ttl, lockPoll)
	if err != nil {
		return nil, err
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := r.locker.Release(releaseCtx, key, token); err != nil {
			r.log.Warn("failed to release order lock", zap.String("order_id", orderID), zap.Error(err))
		}
	}, nil
}

var _ fulfillmentdomain.Locker = (*Redis)(nil)
