package scheduler

import (
	"time"

	"github.com/smallbiznis/mysteryart/internal/config"
)

// Config controls the failed-fulfillment sweeper.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	// MinAge leaves freshly failed records alone so provider redeliveries
	// get the first chance at them.
	MinAge     time.Duration
	JobTimeout time.Duration
	// MaxAttempts is the fulfillment retry budget; records at or above it
	// are left for operators.
	MaxAttempts int
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   25,
		MinAge:      30 * time.Second,
		JobTimeout:  2 * time.Minute,
		MaxAttempts: 5,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Sweeper.Enabled,
		RunInterval: cfg.Sweeper.Interval,
		BatchSize:   cfg.Sweeper.BatchSize,
		MinAge:      cfg.Sweeper.MinAge,
		MaxAttempts: cfg.Fulfillment.MaxAttempts,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MinAge < 0 {
		c.MinAge = defaults.MinAge
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
