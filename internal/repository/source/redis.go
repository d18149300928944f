package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaennil/guide_helper/backend/overzoom/internal/tile"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	maxBytes int64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL applies to Put; zero keeps seeded tiles forever.
	TTL      time.Duration
	MaxBytes int64
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &RedisStore{
		client:   client,
		ttl:      cfg.TTL,
		maxBytes: maxBytes,
	}, nil
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) keyFor(c tile.Coordinate) string {
	return fmt.Sprintf("tile:%d:%d:%d", c.Z, c.X, c.Y)
}

func (s *RedisStore) Name() string {
	return "redis"
}

func observe(operation string, start time.Time, err error) {
	metrics.RedisOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RedisErrors.WithLabelValues(operation).Inc()
	}
}

func (s *RedisStore) Exists(ctx context.Context, c tile.Coordinate) (bool, error) {
	start := time.Now()
	n, err := s.client.Exists(ctx, s.keyFor(c)).Result()
	observe("exists", start, err)
	if err != nil {
		return false, fmt.Errorf("redis exists error: %w", err)
	}

	return n > 0, nil
}

func (s *RedisStore) Get(ctx context.Context, c tile.Coordinate) ([]byte, bool, error) {
	key := s.keyFor(c)

	start := time.Now()
	size, err := s.client.StrLen(ctx, key).Result()
	observe("strlen", start, err)
	if err != nil {
		return nil, false, fmt.Errorf("redis strlen error: %w", err)
	}
	if size > s.maxBytes {
		return nil, false, fmt.Errorf("tile %s: %d bytes: %w", c, size, ErrTooLarge)
	}

	start = time.Now()
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observe("get", start, nil)
		return nil, false, nil
	}
	observe("get", start, err)
	if err != nil {
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}

	return data, true, nil
}

// Put seeds a tile into the pyramid.
func (s *RedisStore) Put(ctx context.Context, c tile.Coordinate, data []byte) error {
	start := time.Now()
	err := s.client.Set(ctx, s.keyFor(c), data, s.ttl).Err()
	observe("set", start, err)
	if err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
