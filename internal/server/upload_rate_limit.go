package server

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/schoolbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/schoolbill/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	rateLimitReasonActorRate        = "actor-rate"
	rateLimitReasonActorConcurrency = "actor-concurrency"
)

// UploadRateLimit throttles uploads per actor and allows one upload in
// flight per actor. It must run after ActorRequired.
func (s *Server) UploadRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.uploadLimiter == nil || !s.uploadLimiter.Enabled() {
			c.Next()
			return
		}

		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		ctx := c.Request.Context()
		actorID := actor.ID.String()

		result, err := s.uploadLimiter.AllowActor(ctx, actorID)
		if err != nil {
			logger.FromContext(ctx).Warn("upload rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if !result.Allowed {
			denyUploadRateLimit(c, endpoint, rateLimitReasonActorRate, result.RetryAfter, s.obsMetrics)
			return
		}

		lease, acquired, err := s.uploadLimiter.LockActor(ctx, actorID)
		if err != nil {
			logger.FromContext(ctx).Warn("upload concurrency lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !acquired {
			denyUploadRateLimit(c, endpoint, rateLimitReasonActorConcurrency, time.Second, s.obsMetrics)
			return
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := lease.Release(releaseCtx); err != nil {
				logger.FromContext(ctx).Warn("upload concurrency unlock failed", zap.Error(err))
			}
		}()

		c.Next()
	}
}

func denyUploadRateLimit(c *gin.Context, endpoint, reason string, retryAfter time.Duration, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("upload rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)

	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
