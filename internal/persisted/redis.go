package persisted

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a Redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every hash.
	Prefix string
	// TTL expires entries; zero keeps them forever.
	TTL time.Duration
}

// DefaultRedisConfig returns the settings used when none are configured.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{Addr: "localhost:6379", Prefix: "fieldgraph:pq:"}
}

// Redis shares persisted queries between processes.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisWithClient(client, cfg), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, cfg RedisConfig) *Redis {
	return &Redis{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (r *Redis) Get(ctx context.Context, hash string) (string, error) {
	q, err := r.client.Get(ctx, r.prefix+hash).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return q, err
}

func (r *Redis) Put(ctx context.Context, hash, query string) error {
	return r.client.Set(ctx, r.prefix+hash, query, r.ttl).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
