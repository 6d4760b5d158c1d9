package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/schoolbill/internal/config"
)

const (
	keyUploadActor = "documents:upload:actor:%s"
	keyUploadLock  = "documents:upload:lock:%s"
)

// UploadLimiter throttles document uploads per actor and allows one upload
// in flight per actor.
type UploadLimiter struct {
	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewUploadLimiter(cfg config.Config, bucket *TokenBucket, locker *Locker) (*UploadLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || bucket == nil {
		return nil, nil
	}
	if limitCfg.UploadActorRate <= 0 || limitCfg.UploadActorBurst <= 0 {
		return nil, errors.New("upload rate limit must be positive")
	}
	if limitCfg.UploadConcurrencyTTLSeconds <= 0 {
		return nil, errors.New("upload concurrency ttl must be positive")
	}
	return &UploadLimiter{
		bucket:  bucket,
		locker:  locker,
		rate:    limitCfg.UploadActorRate,
		burst:   limitCfg.UploadActorBurst,
		lockTTL: time.Duration(limitCfg.UploadConcurrencyTTLSeconds) * time.Second,
	}, nil
}

func (l *UploadLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *UploadLimiter) AllowActor(ctx context.Context, actorID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyUploadActor, strings.TrimSpace(actorID)), l.rate, l.burst)
}

// LockActor reports ok=false while another upload by the same actor holds
// the lease. With limiting disabled it returns ok and a nil lease, which
// releases as a no-op.
func (l *UploadLimiter) LockActor(ctx context.Context, actorID string) (*Lease, bool, error) {
	if !l.Enabled() || l.locker == nil {
		return nil, true, nil
	}
	lease, err := l.locker.Acquire(ctx, fmt.Sprintf(keyUploadLock, strings.TrimSpace(actorID)), l.lockTTL)
	if err != nil {
		return nil, false, err
	}
	return lease, lease != nil, nil
}
