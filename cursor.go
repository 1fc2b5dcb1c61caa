package docrepo

import (
	"context"

	"github.com/autom8ter/docrepo/predicate"
	"github.com/autom8ter/docrepo/store"
)

// Cursor is a deferred, sorted and paginated query. Cursors are values: Limit, Skip and Sort return
// a new cursor and leave the receiver untouched. Nothing is read until One, Array, Count or Exists.
type Cursor[T any] struct {
	repo  *Repository[T]
	where predicate.Predicate
	limit int64
	skip  int64
	sort  []store.SortField
}

// Limit caps the number of records returned by Array. Zero means no limit.
func (c Cursor[T]) Limit(n int64) Cursor[T] {
	c.limit = max(n, 0)
	return c
}

// Skip skips the first n matching records
func (c Cursor[T]) Skip(n int64) Cursor[T] {
	c.skip = max(n, 0)
	return c
}

// Sort orders the records by the field, replacing any earlier ordering
func (c Cursor[T]) Sort(field predicate.Ref, ascending bool) Cursor[T] {
	c.sort = []store.SortField{{
		Field: predicate.ResolvePath(field.Path(), c.repo.identity.field),
		Asc:   ascending,
	}}
	return c
}

func (c Cursor[T]) opts() store.FindOpts {
	return store.FindOpts{
		Filter: c.where.Render(c.repo.identity.field),
		Sort:   c.sort,
		Skip:   c.skip,
		Limit:  c.limit,
	}
}

// One returns the first record, or nil when nothing matches
func (c Cursor[T]) One(ctx context.Context) (*T, error) {
	return c.repo.first(ctx, c.opts())
}

// Array returns the records, honoring limit, skip and sort
func (c Cursor[T]) Array(ctx context.Context) ([]T, error) {
	docs, err := c.repo.find(ctx, c.opts())
	if err != nil {
		return nil, err
	}
	return c.repo.decodeAll(docs)
}

// Count returns how many records match, ignoring limit and skip
func (c Cursor[T]) Count(ctx context.Context) (int64, error) {
	return c.repo.Count(ctx, c.where)
}

// Exists reports whether any record matches
func (c Cursor[T]) Exists(ctx context.Context) (bool, error) {
	count, err := c.Count(ctx)
	return count > 0, err
}
