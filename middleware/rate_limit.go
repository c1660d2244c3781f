// api/middleware/rate_limit.go
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pulsestream/api/ratelimit"
)

// Admitter is the limiter surface the middleware needs.
type Admitter interface {
	Admit(ctx context.Context, clientKey string) (ratelimit.Decision, error)
}

// RateLimit gates every request before any other pipeline work happens.
// Requests carrying the configured ingest API key draw from a per-key bucket;
// everything else is bucketed by source IP. Rejection is side-effect-free:
// the request is aborted before the handler runs.
//
// If the bucket store is unreachable the middleware fails open with a
// warning. Rate limiting here is capacity protection, not a security
// boundary, and losing it must never take ingestion down with it.
func RateLimit(limiter Admitter, ingestAPIKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if apiKey := c.GetHeader("X-API-Key"); apiKey != "" && ingestAPIKey != "" && apiKey == ingestAPIKey {
			key = "api_key:" + apiKey
		}

		decision, err := limiter.Admit(c.Request.Context(), key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, failing open")
			c.Next()
			return
		}

		setRateLimitHeaders(c, decision)

		if !decision.Allowed {
			log.Warn().Str("key", key).Str("path", c.Request.URL.Path).Msg("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(time.Until(decision.ResetAt).Seconds()) + 1,
			})
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, d ratelimit.Decision) {
	c.Writer.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
	c.Writer.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
	c.Writer.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", d.ResetAt.Unix()))
	if !d.Allowed {
		c.Writer.Header().Set("Retry-After", fmt.Sprintf("%d", int(time.Until(d.ResetAt).Seconds())+1))
	}
}
