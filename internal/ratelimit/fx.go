package ratelimit

import "go.uber.org/fx"

// Every constructor returns nil when rate limiting is disabled; callers treat
// a nil limiter or locker as "always allowed".
var Module = fx.Module("rate.limit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
	fx.Provide(NewTokenBucket),
	fx.Provide(NewUploadLimiter),
)
