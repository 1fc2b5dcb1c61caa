package kvstore

import (
	"context"
	"encoding/json"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/internal/prefix"
	"github.com/autom8ter/docrepo/kv"
	"github.com/autom8ter/docrepo/predicate"
	"github.com/autom8ter/docrepo/store"
	"github.com/samber/lo"
)

type collection struct {
	db      *DB
	keys    prefix.Keys
	session *session
	err     error
}

func (c *collection) Name() string {
	return c.keys.Collection()
}

func (c *collection) WithSession(s store.Session) store.Collection {
	bound, ok := s.(*session)
	if !ok {
		return &collection{
			db:   c.db,
			keys: c.keys,
			err:  errors.New(errors.Validation, "foreign session %T", s),
		}
	}
	return &collection{
		db:      c.db,
		keys:    c.keys,
		session: bound,
	}
}

func (c *collection) tx(ctx context.Context, isUpdate bool, fn func(kv.Tx) error) error {
	if c.err != nil {
		return c.err
	}
	if c.session != nil {
		if err := c.session.check(); err != nil {
			return err
		}
		return fn(c.session.tx)
	}
	return c.db.kv.Tx(ctx, isUpdate, fn)
}

func (c *collection) EnsureIndexes(ctx context.Context, indexes []store.Index) error {
	return c.tx(ctx, true, func(tx kv.Tx) error {
		existing, err := c.indexes(ctx, tx)
		if err != nil {
			return err
		}
		var added []store.Index
		for _, idx := range indexes {
			if lo.ContainsBy(existing, func(e store.Index) bool { return e.Name == idx.Name }) {
				continue
			}
			existing = append(existing, idx)
			added = append(added, idx)
		}
		if len(added) == 0 {
			return nil
		}
		docs, err := c.scan(ctx, tx, predicate.M{})
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := c.indexDocument(ctx, tx, added, doc); err != nil {
				return errors.Wrap(err, 0, "failed to build index on %s", c.Name())
			}
		}
		bits, err := json.Marshal(existing)
		if err != nil {
			return err
		}
		return tx.Set(ctx, c.keys.Catalog(), bits)
	})
}

func (c *collection) Find(ctx context.Context, opts store.FindOpts) (store.Documents, error) {
	var docs store.Documents
	if err := c.tx(ctx, false, func(tx kv.Tx) error {
		var err error
		docs, err = c.scan(ctx, tx, opts.Filter)
		return err
	}); err != nil {
		return nil, err
	}
	sortDocuments(docs, opts.Sort)
	if opts.Skip > 0 {
		docs = docs.Slice(int(opts.Skip), len(docs))
	}
	if opts.Limit > 0 && int(opts.Limit) < len(docs) {
		docs = docs.Slice(0, int(opts.Limit))
	}
	return docs, nil
}

func (c *collection) Count(ctx context.Context, filter predicate.M) (int64, error) {
	docs, err := c.Find(ctx, store.FindOpts{Filter: filter})
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (c *collection) Insert(ctx context.Context, doc *store.Document) error {
	id := doc.ID()
	if id == "" {
		return errors.New(errors.Validation, "document is missing %s", store.IDKey)
	}
	return c.tx(ctx, true, func(tx kv.Tx) error {
		before, err := c.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if before != nil {
			return errors.New(errors.Conflict, "duplicate key: %s/%s already exists", c.Name(), id)
		}
		return c.put(ctx, tx, nil, doc)
	})
}

func (c *collection) Replace(ctx context.Context, doc *store.Document, upsert bool) (store.UpdateResult, error) {
	id := doc.ID()
	if id == "" {
		return store.UpdateResult{}, errors.New(errors.Validation, "document is missing %s", store.IDKey)
	}
	var result store.UpdateResult
	err := c.tx(ctx, true, func(tx kv.Tx) error {
		before, err := c.get(ctx, tx, id)
		if err != nil {
			return err
		}
		switch {
		case before != nil:
			result.Matched = 1
		case upsert:
			result.Upserted = true
		default:
			return nil
		}
		return c.put(ctx, tx, before, doc)
	})
	return result, err
}

func (c *collection) Delete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := c.tx(ctx, true, func(tx kv.Tx) error {
		before, err := c.get(ctx, tx, id)
		if err != nil || before == nil {
			return err
		}
		deleted = true
		return c.remove(ctx, tx, before)
	})
	return deleted, err
}

func (c *collection) DeleteMany(ctx context.Context, filter predicate.M) (int64, error) {
	var deleted int64
	err := c.tx(ctx, true, func(tx kv.Tx) error {
		docs, err := c.scan(ctx, tx, filter)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := c.remove(ctx, tx, doc); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

func (c *collection) get(ctx context.Context, tx kv.Tx, id string) (*store.Document, error) {
	bits, err := tx.Get(ctx, c.keys.Document(id))
	if err != nil || bits == nil {
		return nil, err
	}
	return store.NewDocumentFromBytes(bits)
}

// scan returns every document matching the filter. The iterator is closed before returning so
// that callers may write inside the same transaction.
func (c *collection) scan(ctx context.Context, tx kv.Tx, filter predicate.M) (store.Documents, error) {
	m, err := newMatcher(filter)
	if err != nil {
		return nil, err
	}
	iter, err := tx.NewIterator(kv.IterOpts{Prefix: c.keys.Documents()})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var docs store.Documents
	for iter.Valid() {
		bits, err := iter.Value()
		if err != nil {
			return nil, err
		}
		doc, err := store.NewDocumentFromBytes(bits)
		if err != nil {
			return nil, errors.Wrap(err, errors.Internal, "corrupt document %s", string(iter.Key()))
		}
		var value map[string]any
		if err := decodeJSON(bits, &value); err != nil {
			return nil, errors.Wrap(err, errors.Internal, "corrupt document %s", string(iter.Key()))
		}
		ok, err := m.match(value)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, doc)
		}
		if err := iter.Next(); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func (c *collection) put(ctx context.Context, tx kv.Tx, before, after *store.Document) error {
	indexes, err := c.indexes(ctx, tx)
	if err != nil {
		return err
	}
	if before != nil {
		if err := c.unindexDocument(ctx, tx, indexes, before); err != nil {
			return err
		}
	}
	if err := c.indexDocument(ctx, tx, indexes, after); err != nil {
		return err
	}
	return tx.Set(ctx, c.keys.Document(after.ID()), after.Bytes())
}

func (c *collection) remove(ctx context.Context, tx kv.Tx, doc *store.Document) error {
	indexes, err := c.indexes(ctx, tx)
	if err != nil {
		return err
	}
	if err := c.unindexDocument(ctx, tx, indexes, doc); err != nil {
		return err
	}
	return tx.Delete(ctx, c.keys.Document(doc.ID()))
}
