package kvstore

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/internal/prefix"
	"github.com/autom8ter/docrepo/kv"
	_ "github.com/autom8ter/docrepo/kv/badger"
	kvregistry "github.com/autom8ter/docrepo/kv/registry"
	_ "github.com/autom8ter/docrepo/kv/sqlite"
	_ "github.com/autom8ter/docrepo/kv/tikv"
	"github.com/autom8ter/docrepo/store"
	"github.com/autom8ter/docrepo/store/registry"
	"github.com/segmentio/ksuid"
)

func init() {
	for _, provider := range []string{"badger", "tikv", "sqlite"} {
		provider := provider
		registry.Register(provider, func(ctx context.Context, params map[string]any) (store.Database, error) {
			return Open(provider, params)
		})
	}
}

// DB is a document store over a transactional key value database
type DB struct {
	kv kv.DB
}

// Open opens the named kv provider and returns a document store over it
func Open(provider string, params map[string]any) (*DB, error) {
	db, err := kvregistry.Open(provider, params)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New returns a document store over the key value database
func New(db kv.DB) *DB {
	return &DB{kv: db}
}

// Collection returns a handle to the named collection
func (d *DB) Collection(name string) store.Collection {
	return &collection{
		db:   d,
		keys: prefix.New(name),
	}
}

// Transact runs fn inside a single read-write kv transaction. kv transactions are serializable
// snapshots so every consistency level in opts is satisfied.
func (d *DB) Transact(ctx context.Context, opts store.TxOpts, fn func(ctx context.Context, session store.Session) error) error {
	return d.kv.Tx(ctx, true, func(tx kv.Tx) error {
		s := &session{
			id: ksuid.New().String(),
			tx: tx,
		}
		defer s.end()
		return fn(ctx, s)
	})
}

// NewLocker returns a lease lock stored in the key value database
func (d *DB) NewLocker(name string, leaseInterval time.Duration) (store.Locker, error) {
	return d.kv.NewLocker(append(prefix.Locks(), name...), leaseInterval)
}

// Close closes the underlying key value database
func (d *DB) Close(ctx context.Context) error {
	return d.kv.Close(ctx)
}

type session struct {
	id    string
	tx    kv.Tx
	ended atomic.Bool
}

func (s *session) ID() string {
	return s.id
}

func (s *session) end() {
	s.ended.Store(true)
}

func (s *session) check() error {
	if s.ended.Load() {
		return errors.New(errors.Forbidden, "session %s has ended", s.id)
	}
	return nil
}
