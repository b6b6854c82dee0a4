// Package kv provides the durable key/value stores the capsule registry is
// kept in. Every backend follows the same contract: Get returns (nil, nil)
// for an absent key, and Update runs a read-modify-write of one key
// atomically with respect to other Update calls.
package kv

import (
	"context"
	"errors"
)

// ErrConflict is returned when an optimistic update keeps losing races.
var ErrConflict = errors.New("concurrent update conflict")

// UpdateFunc receives the current value (nil when absent) and returns the
// value to store. Returning a nil value deletes the key. Returning an error
// aborts the update without changing anything.
type UpdateFunc func(current []byte) ([]byte, error)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}
