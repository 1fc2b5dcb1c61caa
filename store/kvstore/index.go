package kvstore

import (
	"context"
	"encoding/json"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/kv"
	"github.com/autom8ter/docrepo/store"
)

// indexes returns the index declarations in the collection's catalog entry
func (c *collection) indexes(ctx context.Context, tx kv.Tx) ([]store.Index, error) {
	bits, err := tx.Get(ctx, c.keys.Catalog())
	if err != nil || bits == nil {
		return nil, err
	}
	var indexes []store.Index
	if err := json.Unmarshal(bits, &indexes); err != nil {
		return nil, errors.Wrap(err, errors.Internal, "corrupt catalog entry for %s", c.Name())
	}
	return indexes, nil
}

// entryValues returns the document's values for the index fields. Documents that carry none of the
// fields are left out of the index.
func entryValues(idx store.Index, doc *store.Document) ([]any, bool) {
	var (
		values []any
		found  bool
	)
	for _, field := range idx.Fields {
		value, ok := fieldValue(doc, field)
		if ok {
			found = true
		}
		values = append(values, value)
	}
	return values, found
}

// indexDocument writes the unique index entries of the document. Only unique indexes carry entries,
// other declarations are recorded in the catalog.
func (c *collection) indexDocument(ctx context.Context, tx kv.Tx, indexes []store.Index, doc *store.Document) error {
	for _, idx := range indexes {
		if !idx.Unique {
			continue
		}
		values, ok := entryValues(idx, doc)
		if !ok {
			continue
		}
		key := c.keys.IndexEntry(idx.Name, values)
		owner, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}
		if owner != nil && string(owner) != doc.ID() {
			return errors.New(errors.Conflict, "duplicate key: %s.%s already holds %v", c.Name(), idx.Name, values)
		}
		if err := tx.Set(ctx, key, []byte(doc.ID())); err != nil {
			return err
		}
	}
	return nil
}

func (c *collection) unindexDocument(ctx context.Context, tx kv.Tx, indexes []store.Index, doc *store.Document) error {
	for _, idx := range indexes {
		if !idx.Unique {
			continue
		}
		values, ok := entryValues(idx, doc)
		if !ok {
			continue
		}
		key := c.keys.IndexEntry(idx.Name, values)
		owner, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}
		if string(owner) == doc.ID() {
			if err := tx.Delete(ctx, key); err != nil {
				return err
			}
		}
	}
	return nil
}
