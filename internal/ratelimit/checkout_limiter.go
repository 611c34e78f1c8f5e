package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/mysteryart/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const keyCheckoutClient = "mysteryart:checkout:client:%s"

type CheckoutLimiterParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Redis  redis.UniversalClient `optional:"true"`
}

// CheckoutLimiter throttles checkout session creation per client. It uses
// the shared redis bucket when redis is configured and falls back to an
// in-process limiter otherwise, or when redis errors.
type CheckoutLimiter struct {
	log *zap.Logger

	enabled bool
	rate    float64
	burst   int
	bucket  *TokenBucket

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewCheckoutLimiter(p CheckoutLimiterParams) *CheckoutLimiter {
	limitCfg := p.Config.RateLimit
	limiter := &CheckoutLimiter{
		log:     p.Log.Named("ratelimit.checkout"),
		enabled: limitCfg.Enabled && limitCfg.CheckoutRate > 0 && limitCfg.CheckoutBurst > 0,
		rate:    limitCfg.CheckoutRate,
		burst:   limitCfg.CheckoutBurst,
		local:   make(map[string]*rate.Limiter),
	}
	if p.Redis != nil {
		limiter.bucket = NewTokenBucket(p.Redis)
	}
	return limiter
}

func (l *CheckoutLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *CheckoutLimiter) Allow(ctx context.Context, clientKey string) *RateLimitResult {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}
	}
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "anonymous"
	}

	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyCheckoutClient, clientKey), l.rate, l.burst)
		if err == nil {
			return res
		}
		l.log.Warn("redis rate limit unavailable, using local limiter", zap.Error(err))
	}
	return l.allowLocal(clientKey)
}

func (l *CheckoutLimiter) allowLocal(clientKey string) *RateLimitResult {
	l.mu.Lock()
	limiter, ok := l.local[clientKey]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.rate), l.burst)
		l.local[clientKey] = limiter
	}
	l.mu.Unlock()

	reservation := limiter.Reserve()
	if !reservation.OK() {
		return &RateLimitResult{Allowed: false, Limit: l.burst}
	}
	delay := reservation.Delay()
	if delay > 0 {
		reservation.Cancel()
		return &RateLimitResult{Allowed: false, Limit: l.burst, RetryAfter: delay}
	}
	return &RateLimitResult{
		Allowed:   true,
		Limit:     l.burst,
		Remaining: int(math.Max(0, math.Floor(limiter.Tokens()))),
	}
}

// RetryAfterSeconds rounds a delay up to whole seconds for the Retry-After header.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}
