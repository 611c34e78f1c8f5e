package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/mysteryart/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLimiter(enabled bool, r float64, burst int) *CheckoutLimiter {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: enabled, CheckoutRate: r, CheckoutBurst: burst}}
	return NewCheckoutLimiter(CheckoutLimiterParams{Config: cfg, Log: zap.NewNop()})
}

func TestCheckoutLimiterLocalBurst(t *testing.T) {
	limiter := newTestLimiter(true, 0.001, 2)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "10.0.0.1").Allowed)
	assert.True(t, limiter.Allow(ctx, "10.0.0.1").Allowed)

	denied := limiter.Allow(ctx, "10.0.0.1")
	assert.False(t, denied.Allowed)
	assert.Greater(t, denied.RetryAfter, time.Duration(0))

	assert.True(t, limiter.Allow(ctx, "10.0.0.2").Allowed, "separate clients have separate buckets")
}

func TestCheckoutLimiterDisabled(t *testing.T) {
	limiter := newTestLimiter(false, 1, 1)
	for i := 0; i < 10; i++ {
		assert.True(t, limiter.Allow(context.Background(), "10.0.0.1").Allowed)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, RetryAfterSeconds(0))
	assert.Equal(t, 1, RetryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 3, RetryAfterSeconds(2500*time.Millisecond))
}

func TestCastHelpersAcceptStrings(t *testing.T) {
	assert.Equal(t, int64(1), castToInt("1"))
	assert.InDelta(t, 0.5, castToFloat("0.5"), 1e-9)
	assert.InDelta(t, 2.0, castToFloat(int64(2)), 1e-9)
}

func TestGinMiddlewareReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := newTestLimiter(true, 0.001, 1)

	r := gin.New()
	r.POST("/api/checkout", GinMiddleware(limiter, nil, "checkout"), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/checkout", nil))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/checkout", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), ErrorCodeRateLimited)
}
