package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	obsmetrics "github.com/smallbiznis/mysteryart/internal/observability/metrics"
)

// ErrorCodeRateLimited is the error code returned to throttled clients.
const ErrorCodeRateLimited = "rate_limited"

// GinMiddleware throttles requests per client IP using the checkout limiter.
func GinMiddleware(l *CheckoutLimiter, m *obsmetrics.Metrics, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Enabled() {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		res := l.Allow(ctx, c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			m.RecordRateLimitDenied(ctx, endpoint, "burst")
			c.Header("Retry-After", strconv.Itoa(RetryAfterSeconds(res.RetryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"type":    ErrorCodeRateLimited,
					"message": "too many checkout attempts, try again shortly",
				},
			})
			return
		}
		m.RecordRateLimitAllowed(ctx, endpoint)
		c.Next()
	}
}
