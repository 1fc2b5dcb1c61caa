package sqlite

import (
	"context"
	"database/sql"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/kv"
	"github.com/autom8ter/docrepo/kv/kvutil"
)

type sqliteTx struct {
	txn      *sql.Tx
	readOnly bool
}

func (t *sqliteTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	var val []byte
	err := t.txn.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, key).Scan(&val)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (t *sqliteTx) Set(ctx context.Context, key, value []byte) error {
	if t.readOnly {
		return errors.New(errors.Forbidden, "writes forbidden in read-only transaction")
	}
	_, err := t.txn.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`, key, value)
	return err
}

func (t *sqliteTx) Delete(ctx context.Context, key []byte) error {
	if t.readOnly {
		return errors.New(errors.Forbidden, "writes forbidden in read-only transaction")
	}
	_, err := t.txn.ExecContext(ctx, `DELETE FROM kv WHERE k = ?`, key)
	return err
}

// NewIterator loads the matching range eagerly so that writes inside the same transaction never
// interleave with an open cursor.
func (t *sqliteTx) NewIterator(opts kv.IterOpts) (kv.Iterator, error) {
	var (
		rows *sql.Rows
		err  error
	)
	upper := kvutil.NextPrefix(opts.Prefix)
	switch {
	case len(opts.Prefix) == 0:
		rows, err = t.txn.Query(`SELECT k, v FROM kv ORDER BY k`)
	case len(upper) == 0:
		rows, err = t.txn.Query(`SELECT k, v FROM kv WHERE k >= ? ORDER BY k`, opts.Prefix)
	default:
		rows, err = t.txn.Query(`SELECT k, v FROM kv WHERE k >= ? AND k < ? ORDER BY k`, opts.Prefix, upper)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	iter := &sqliteIterator{}
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.key, &e.value); err != nil {
			return nil, err
		}
		iter.entries = append(iter.entries, e)
	}
	return iter, rows.Err()
}

type entry struct {
	key   []byte
	value []byte
}

type sqliteIterator struct {
	entries []entry
	pos     int
}

func (s *sqliteIterator) Valid() bool {
	return s.pos < len(s.entries)
}

func (s *sqliteIterator) Key() []byte {
	return s.entries[s.pos].key
}

func (s *sqliteIterator) Value() ([]byte, error) {
	return s.entries[s.pos].value, nil
}

func (s *sqliteIterator) Next() error {
	s.pos++
	return nil
}

func (s *sqliteIterator) Close() {
	s.entries = nil
}
