package repository

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements domain.DayLocker with SET NX PX.
type RedisLocker struct {
	client *redis.Client
	prefix string
	poll   time.Duration
}

var _ domain.DayLocker = (*RedisLocker)(nil)

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "slotbook:lock:"
	}
	return &RedisLocker{
		client: client,
		prefix: prefix,
		poll:   defaultPollInterval,
	}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (domain.Lease, error) {
	if r.client == nil {
		return nil, fmt.Errorf("%w: redis client is nil", domain.ErrTransient)
	}
	return acquireLoop(ctx, key, r.poll, func(ctx context.Context) (domain.Lease, bool, error) {
		return r.tryAcquire(ctx, key, ttl)
	})
}

func (r *RedisLocker) tryAcquire(ctx context.Context, key string, ttl time.Duration) (domain.Lease, bool, error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to set lock in redis: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{client: r.client, key: redisKey, token: token}, true, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock in redis: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrLockLost, l.key)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
