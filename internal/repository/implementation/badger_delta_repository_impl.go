package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"metabolic-model-be/internal/repository/contract"
	"metabolic-model-be/pkg/operations"

	"github.com/dgraph-io/badger/v4"
)

const deltaPrefix = "delta/"

type BadgerDeltaRepository struct {
	db *badger.DB
}

// OpenBadger opens the embedded store at path, or an in-memory one when
// path is empty.
func OpenBadger(path string) (*badger.DB, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	db, err := badger.Open(opts.WithNumVersionsToKeep(1).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

func NewBadgerDeltaRepository(db *badger.DB) contract.IDeltaRepository {
	return &BadgerDeltaRepository{db: db}
}

func (r *BadgerDeltaRepository) Save(ctx context.Context, key string, ops []operations.Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("encode operations: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(deltaPrefix+key), value)
	})
}

func (r *BadgerDeltaRepository) Load(ctx context.Context, key string) ([]operations.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(deltaPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", key, contract.ErrDeltaNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeOperations(key, value)
}

func (r *BadgerDeltaRepository) Close() error {
	return r.db.Close()
}
