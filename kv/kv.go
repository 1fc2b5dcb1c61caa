package kv

import (
	"context"
	"time"
)

// DB is a transactional key value database
type DB interface {
	// Tx executes the function inside a transaction. The transaction is committed if the function returns nil
	// and discarded otherwise. isUpdate must be true for the transaction to accept writes.
	Tx(ctx context.Context, isUpdate bool, fn func(Tx) error) error
	// NewLocker returns a lease based distributed lock on the given key
	NewLocker(key []byte, leaseInterval time.Duration) (Locker, error)
	// Close closes the database
	Close(ctx context.Context) error
}

// IterOpts are options for iterating over keys
type IterOpts struct {
	Prefix []byte `json:"prefix"`
}

// Tx is a key value transaction. Get returns a nil value and a nil error when the key does not exist.
type Tx interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	NewIterator(opts IterOpts) (Iterator, error)
}

// Iterator iterates over keys in ascending byte order
type Iterator interface {
	Valid() bool
	Key() []byte
	Value() ([]byte, error)
	Next() error
	Close()
}

// Locker is a lease based lock
type Locker interface {
	// TryLock tries to acquire the lock without blocking
	TryLock(ctx context.Context) (bool, error)
	// IsLocked reports whether anyone currently holds an unexpired lease
	IsLocked(ctx context.Context) (bool, error)
	// Unlock releases the lock
	Unlock()
}
