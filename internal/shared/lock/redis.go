package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cristianortiz/quickbid/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	defaultKeyPrefix  = "quickbid:lock:"
	defaultRetryDelay = 10 * time.Millisecond
	releaseTimeout    = time.Second
)

// ErrBackendUnavailable wraps failures talking to the lock backend.
var ErrBackendUnavailable = errors.New("lock backend unavailable")

// only the owner of the token may delete the key
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process connected to the same redis.
// The key expires after ttl so a crashed holder cannot block an auction forever;
// callers must not rely on the lock alone for correctness past that deadline.
type RedisLocker struct {
	client     redis.Cmdable
	ttl        time.Duration
	retryDelay time.Duration
	prefix     string
}

// NewRedisLocker creates a RedisLocker.
// client can be either *redis.Client (standalone) or *redis.ClusterClient (cluster mode)
func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		retryDelay: defaultRetryDelay,
		prefix:     defaultKeyPrefix,
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: acquire %s: %v", ErrBackendUnavailable, redisKey, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(r.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(rctx, r.client, []string{redisKey}, token).Err(); err != nil {
				log.Warn("RedisLocker: failed to release lock, it will expire",
					zap.String("key", redisKey),
					zap.Duration("ttl", r.ttl),
					zap.Error(err),
				)
			}
		})
	}, nil
}

// Ping reports whether redis is reachable.
func (r *RedisLocker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
