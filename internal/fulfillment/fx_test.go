package fulfillment

import (
	"testing"

	"github.com/smallbiznis/mysteryart/internal/config"
	"github.com/smallbiznis/mysteryart/internal/fulfillment/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestProvideLockerWarnsOnSharedStoreWithLocalLock(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	cfg := config.Config{Fulfillment: config.FulfillmentConfig{
		Store:  config.StoreDatabase,
		Locker: config.LockerLocal,
	}}

	locker, err := provideLocker(lockerParams{Config: cfg, Log: zap.New(core)})
	require.NoError(t, err)
	assert.IsType(t, &lock.Local{}, locker)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "process-local locker")
}

func TestProvideLockerQuietForMemoryStore(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	cfg := config.Config{Fulfillment: config.FulfillmentConfig{
		Store:  config.StoreMemory,
		Locker: config.LockerLocal,
	}}

	_, err := provideLocker(lockerParams{Config: cfg, Log: zap.New(core)})
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestProvideLockerRedisRequiresClient(t *testing.T) {
	cfg := config.Config{Fulfillment: config.FulfillmentConfig{Locker: config.LockerRedis}}
	_, err := provideLocker(lockerParams{Config: cfg, Log: zap.NewNop()})
	assert.Error(t, err)
}
