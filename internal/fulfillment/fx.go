package fulfillment

import (
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/mysteryart/internal/config"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/smallbiznis/mysteryart/internal/fulfillment/lock"
	"github.com/smallbiznis/mysteryart/internal/fulfillment/service"
	"github.com/smallbiznis/mysteryart/internal/fulfillment/store"
	"github.com/smallbiznis/mysteryart/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("fulfillment.service",
	fx.Provide(provideStore),
	fx.Provide(provideLocker),
	fx.Provide(service.New),
	fx.Provide(func(p *service.Pipeline) fulfillmentdomain.Service { return p }),
)

type storeParams struct {
	fx.In

	Config config.Config
	DB     *gorm.DB `optional:"true"`
}

func provideStore(p storeParams) (fulfillmentdomain.Store, error) {
	switch p.Config.Fulfillment.Store {
	case config.StoreDatabase:
		if p.DB == nil {
			return nil, fmt.Errorf("fulfillment store %q requires a database", config.StoreDatabase)
		}
		return store.NewGorm(p.DB), nil
	case config.StoreMemory, "":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported fulfillment store %q", p.Config.Fulfillment.Store)
	}
}

type lockerParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Redis  redis.UniversalClient `optional:"true"`
}

func provideLocker(p lockerParams) (fulfillmentdomain.Locker, error) {
	switch p.Config.Fulfillment.Locker {
	case config.LockerRedis:
		return lock.NewRedis(ratelimit.NewLocker(p.Redis), 2*p.Config.Fulfillment.AttemptTimeout, p.Log)
	case config.LockerLocal, "":
		if p.Config.Fulfillment.Store == config.StoreDatabase {
			p.Log.Warn("database fulfillment store with a process-local locker; orders are only serialized within this instance, use FULFILLMENT_LOCKER=redis when running more than one",
				zap.String("store", p.Config.Fulfillment.Store),
				zap.String("locker", config.LockerLocal),
			)
		}
		return lock.NewLocal(), nil
	default:
		return nil, fmt.Errorf("unsupported fulfillment locker %q", p.Config.Fulfillment.Locker)
	}
}
