package memory

import (
	"context"
	"fmt"
	"time"

	"metabolic-model-be/internal/repository/contract"
	"metabolic-model-be/pkg/operations"

	"github.com/patrickmn/go-cache"
)

// DeltaRepository keeps operation logs in process memory. Entries expire
// after ttl; zero keeps them for the process lifetime.
type DeltaRepository struct {
	cache *cache.Cache
}

func NewDeltaRepository(ttl time.Duration) contract.IDeltaRepository {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl / 2
	}
	return &DeltaRepository{cache: cache.New(expiration, cleanup)}
}

func (r *DeltaRepository) Save(_ context.Context, key string, ops []operations.Operation) error {
	r.cache.Set(key, append([]operations.Operation(nil), ops...), cache.DefaultExpiration)
	return nil
}

func (r *DeltaRepository) Load(_ context.Context, key string) ([]operations.Operation, error) {
	if x, found := r.cache.Get(key); found {
		return append([]operations.Operation(nil), x.([]operations.Operation)...), nil
	}
	return nil, fmt.Errorf("%s: %w", key, contract.ErrDeltaNotFound)
}

func (r *DeltaRepository) Close() error {
	r.cache.Flush()
	return nil
}
