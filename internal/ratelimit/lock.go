package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const leaseKeyPrefix = "schoolbill:lease:"

var (
	ErrLockNotConfigured = errors.New("lock client not configured")
	errEmptyLeaseKey     = errors.New("lease key is empty")
	errLeaseTTL          = errors.New("lease ttl must be positive")
)

// The token check leaves alone a lease that expired and was taken by
// someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out redis leases. A holder that dies keeps its key until the
// TTL runs out.
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

// Lease is one held key. The zero Lease releases as a no-op.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire returns a nil lease and nil error when another holder owns key.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockNotConfigured
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errEmptyLeaseKey
	}
	if ttl <= 0 {
		return nil, errLeaseTTL
	}

	lease := &Lease{client: l.client, key: leaseKeyPrefix + key, token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, lease.key, lease.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return lease, nil
}

func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
