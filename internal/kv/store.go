// Package kv provides the durable key-value backends used to persist the
// art-style preset collection. Every backend stores opaque byte values under
// string keys and overwrites on Put.
package kv

import (
	"context"
	"errors"
)

// Store is a durable key-value store. Get reports found=false with a nil
// error when the key has never been written.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
}

// ErrEmptyKey is returned for an empty key.
var ErrEmptyKey = errors.New("kv: empty key")
