// Package storage provides bucketed blob stores for catalog images.
//
// Every backend honors the same contract: Put with upsert=false never
// overwrites, Delete of a missing object reports ErrObjectNotFound, and a
// key is any slash-separated relative path.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrObjectNotFound is returned when the bucket has no object at the key.
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectExists is returned by Put when upsert is off and the key is taken.
	ErrObjectExists = errors.New("object already exists")

	// ErrInvalidKey is returned for empty, absolute, or escaping keys.
	ErrInvalidKey = errors.New("invalid object key")
)

// ObjectStore is a bucketed blob store.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string, upsert bool) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// validateKey rejects keys that would leave the bucket.
func validateKey(bucket, key string) error {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return fmt.Errorf("%w: bad bucket %q", ErrInvalidKey, bucket)
	}
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if cleaned := path.Clean(key); cleaned != key || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
