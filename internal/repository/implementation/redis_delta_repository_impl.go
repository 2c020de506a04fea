package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"metabolic-model-be/internal/repository/contract"
	"metabolic-model-be/pkg/operations"

	"github.com/redis/go-redis/v9"
)

type RedisDeltaRepository struct {
	client redis.UniversalClient
}

func NewRedisDeltaRepository(client redis.UniversalClient) contract.IDeltaRepository {
	return &RedisDeltaRepository{client: client}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func (r *RedisDeltaRepository) Save(ctx context.Context, key string, ops []operations.Operation) error {
	value, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("encode operations: %w", err)
	}
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisDeltaRepository) Load(ctx context.Context, key string) ([]operations.Operation, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", key, contract.ErrDeltaNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeOperations(key, value)
}

func (r *RedisDeltaRepository) Close() error {
	return r.client.Close()
}

func decodeOperations(key string, value []byte) ([]operations.Operation, error) {
	var ops []operations.Operation
	if err := json.Unmarshal(value, &ops); err != nil {
		return nil, fmt.Errorf("decode operations %s: %w", key, err)
	}
	return ops, nil
}
