package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisTTL   = 2 * time.Minute
	defaultRedisRetry = 100 * time.Millisecond
	redisKeyPrefix    = "haetable:lock:"
)

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript pushes the expiry out only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a Locker shared by every instance pointing at the same Redis.
// A held lock is renewed every third of its TTL, so it only expires when the
// holder stops renewing it (a crashed process or a lost connection).
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	log    *slog.Logger
}

// Compile-time check: *Redis satisfies Locker.
var _ Locker = (*Redis)(nil)

// NewRedis connects to Redis and verifies the connection with a ping.
// A zero ttl uses two minutes.
func NewRedis(addr, password string, db int, ttl time.Duration, log *slog.Logger) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return &Redis{client: client, ttl: ttl, retry: defaultRedisRetry, log: log}, nil
}

// Lock polls SET NX until it wins the key or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %q: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.renew(key, redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.log.Warn("releasing table lock", "key", key, "error", err)
			}
		})
	}, nil
}

// renew extends the lock until stop is closed. It gives up once the key no
// longer holds token or Redis cannot be reached.
func (r *Redis) renew(key, redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := max(r.ttl/3, time.Millisecond)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), every)
		n, err := renewScript.Run(ctx, r.client, []string{redisKey}, token, r.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			r.log.Warn("renewing table lock", "key", key, "error", err)
			return
		}
		if n == 0 {
			r.log.Warn("table lock lost before release", "key", key)
			return
		}
	}
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
