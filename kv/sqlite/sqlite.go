package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/kv"
	"github.com/autom8ter/docrepo/kv/kvutil"
	"github.com/autom8ter/docrepo/kv/registry"
	"github.com/autom8ter/docrepo/util"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	registry.Register("sqlite", func(params map[string]interface{}) (kv.DB, error) {
		var opts Options
		if err := util.Decode(params, &opts); err != nil {
			return nil, err
		}
		return Open(opts)
	})
}

// Options configures a sqlite database
type Options struct {
	// Path is the database file
	Path string `json:"path"`
	// BusyTimeout is how long a writer waits for a competing writer, in milliseconds
	BusyTimeout int `json:"busy_timeout"`
}

type sqliteKV struct {
	db *sql.DB
}

// Open opens a sqlite backed key value database. Keys and values live in a single table.
func Open(opts Options) (kv.DB, error) {
	if opts.Path == "" {
		return nil, errors.New(errors.Validation, "'path' is a required paramater")
	}
	if opts.BusyTimeout == 0 {
		opts.BusyTimeout = 5000
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_txlock=immediate", opts.Path, opts.BusyTimeout))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		k BLOB NOT NULL PRIMARY KEY,
		v BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteKV{db: db}, nil
}

func (s *sqliteKV) Tx(ctx context.Context, isUpdate bool, fn func(kv.Tx) error) error {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback()
	if err := fn(&sqliteTx{txn: txn, readOnly: !isUpdate}); err != nil {
		return err
	}
	if !isUpdate {
		return nil
	}
	return txn.Commit()
}

func (s *sqliteKV) NewLocker(key []byte, leaseInterval time.Duration) (kv.Locker, error) {
	return kvutil.NewLocker(s, key, leaseInterval)
}

func (s *sqliteKV) Close(ctx context.Context) error {
	return s.db.Close()
}
