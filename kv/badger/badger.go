package badger

import (
	"context"
	"time"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/kv"
	"github.com/autom8ter/docrepo/kv/kvutil"
	"github.com/autom8ter/docrepo/kv/registry"
	"github.com/autom8ter/docrepo/util"
	"github.com/dgraph-io/badger/v3"
)

func init() {
	registry.Register("badger", func(params map[string]interface{}) (kv.DB, error) {
		var opts Options
		if err := util.Decode(params, &opts); err != nil {
			return nil, err
		}
		return Open(opts)
	})
}

// Options configures a badger database
type Options struct {
	// StoragePath is the directory holding the database files. The database is held in memory when it is empty.
	StoragePath string `json:"storage_path"`
}

type badgerKV struct {
	db       *badger.DB
	inMemory bool
}

// Open opens a badger backed key value database
func Open(options Options) (kv.DB, error) {
	opts := badger.DefaultOptions(options.StoragePath)
	if options.StoragePath == "" {
		opts.InMemory = true
		opts.Dir = ""
		opts.ValueDir = ""
	}
	opts = opts.WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerKV{
		db:       db,
		inMemory: opts.InMemory,
	}, nil
}

func (b *badgerKV) Tx(ctx context.Context, isUpdate bool, fn func(kv.Tx) error) error {
	if isUpdate {
		err := b.db.Update(func(txn *badger.Txn) error {
			return fn(&badgerTx{txn: txn})
		})
		if err == badger.ErrConflict {
			return errors.Wrap(err, errors.Conflict, "transaction conflict")
		}
		return err
	}
	return b.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn})
	})
}

func (b *badgerKV) NewLocker(key []byte, leaseInterval time.Duration) (kv.Locker, error) {
	return kvutil.NewLocker(b, key, leaseInterval)
}

func (b *badgerKV) Close(ctx context.Context) error {
	if !b.inMemory {
		if err := b.db.Sync(); err != nil {
			return err
		}
	}
	return b.db.Close()
}
