package sessiondata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Saiid2001/login-security-landscape/internal/domain"
)

// keyPrefix namespaces blob keys; the verifier writes the same keys.
const keyPrefix = "sessiondata:"

// RedisStore reads session blobs from Redis, keyed by session name.
type RedisStore struct {
	rdb *goredis.Client
}

// NewRedisClient creates a go-redis client from a URL
// (e.g., "redis://localhost:6379") and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func NewRedisStore(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Load(ctx context.Context, name string) (json.RawMessage, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+name).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionDataMissing, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session data for %s: %w", name, err)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("session data for %s is not valid JSON", name)
	}
	return data, nil
}
