package contract

import (
	"context"
	"errors"

	"metabolic-model-be/pkg/operations"
)

var ErrDeltaNotFound = errors.New("operation log not found")

// IDeltaRepository stores operation logs under their delta key. Saving the
// same key twice overwrites with identical content.
type IDeltaRepository interface {
	Save(ctx context.Context, key string, ops []operations.Operation) error
	Load(ctx context.Context, key string) ([]operations.Operation, error)
	Close() error
}
