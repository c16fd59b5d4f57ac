package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saaga0h/jeeves-roomrelease/pkg/config"
)

// redisClient implements Client on top of go-redis
type redisClient struct {
	client *redis.Client
	addr   string
	logger *slog.Logger
}

// NewClient creates a Redis client whose network timeouts equal the device request timeout
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	timeout := cfg.RequestTimeout()

	opts := &redis.Options{
		Addr:         cfg.RedisAddress(),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		ClientName:   cfg.ServiceName,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	return &redisClient{
		client: redis.NewClient(opts),
		addr:   opts.Addr,
		logger: logger,
	}
}

func (r *redisClient) SetFields(ctx context.Context, key string, values map[string]interface{}) error {
	if len(values) == 0 {
		return nil
	}
	if err := r.client.HSet(ctx, key, values).Err(); err != nil {
		return fmt.Errorf("failed to set hash %s: %w", key, err)
	}
	return nil
}

func (r *redisClient) SetFieldTTL(ctx context.Context, key, field string, value interface{}, ttl time.Duration) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, value)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set %s:%s: %w", key, field, err)
	}
	return nil
}

func (r *redisClient) Fields(ctx context.Context, key string) (map[string]string, error) {
	val, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get hash %s: %w", key, err)
	}
	return val, nil
}

func (r *redisClient) PushCapped(ctx context.Context, key string, value interface{}, max int64) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, value)
		if max > 0 {
			pipe.LTrim(ctx, key, 0, max-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push to list %s: %w", key, err)
	}
	return nil
}

func (r *redisClient) Newest(ctx context.Context, key string, n int64) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	vals, err := r.client.LRange(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", key, err)
	}
	return vals, nil
}

// Ping checks the connection to Redis
func (r *redisClient) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed at %s: %w", r.addr, err)
	}
	return nil
}

// Close closes the Redis connection
func (r *redisClient) Close() error {
	r.logger.Info("Closing Redis connection", "address", r.addr)
	return r.client.Close()
}
