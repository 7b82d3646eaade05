package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const objectKeyPrefix = "obj:"

// BadgerStore keeps objects in an embedded Badger database.
// Keys are obj:{bucket}/{key}.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ ObjectStore = (*BadgerStore)(nil)

// NewBadgerStore opens a Badger database at path. An empty path opens an
// in-memory database.
func NewBadgerStore(path string, logger *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logger.Info("badger object store opened", "path", path, "in_memory", path == "")
	return &BadgerStore{db: db, logger: logger}, nil
}

func objectKey(bucket, key string) []byte {
	return []byte(objectKeyPrefix + bucket + "/" + key)
}

// Put stores data. The existence check and write share one transaction.
func (s *BadgerStore) Put(ctx context.Context, bucket, key string, data []byte, _ string, upsert bool) error {
	if err := validateKey(bucket, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	k := objectKey(bucket, key)
	err := s.db.Update(func(txn *badger.Txn) error {
		if !upsert {
			_, err := txn.Get(k)
			if err == nil {
				return ErrObjectExists
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return txn.Set(k, data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrObjectExists
	}
	return err
}

// Get returns a copy of the stored object.
func (s *BadgerStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := validateKey(bucket, key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(bucket, key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Exists checks for the key without reading the value.
func (s *BadgerStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := validateKey(bucket, key); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(objectKey(bucket, key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the key, reporting ErrObjectNotFound if it was absent.
func (s *BadgerStore) Delete(ctx context.Context, bucket, key string) error {
	if err := validateKey(bucket, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	k := objectKey(bucket, key)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); err != nil {
			return err
		}
		return txn.Delete(k)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrObjectNotFound
	}
	return err
}

// Shutdown closes the database. Satisfies samber/do's Shutdowner.
func (s *BadgerStore) Shutdown() error {
	return s.db.Close()
}
