package docrepo

import (
	"context"
	"sync"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/predicate"
	"github.com/autom8ter/docrepo/store"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	// batchSize is the number of ids fetched per query by GetMany
	batchSize = 100
	// batchConcurrency bounds the concurrent batch queries of an unbound repository
	batchConcurrency = 4
)

// Repository is a typed facade over one collection. T must be json serializable and carry the
// collection's identity field.
type Repository[T any] struct {
	m        *Manager
	name     string
	identity identity
}

// NewRepository returns a repository over a registered collection. Repositories built from a
// session-bound manager run every operation inside that session.
func NewRepository[T any](m *Manager, collection string) (*Repository[T], error) {
	cfg, ok := m.Config(collection)
	if !ok {
		return nil, errors.New(errors.Configuration, "collection %s has no identity mapping", collection)
	}
	return &Repository[T]{
		m:        m,
		name:     collection,
		identity: identity{field: cfg.IDField},
	}, nil
}

// Collection returns the name of the repository's collection
func (r *Repository[T]) Collection() string {
	return r.name
}

// IDField returns the record field stored under _id
func (r *Repository[T]) IDField() string {
	return r.identity.field
}

func (r *Repository[T]) collection(ctx context.Context) (store.Collection, error) {
	return r.m.Collection(ctx, r.name)
}

func (r *Repository[T]) idFilter(ids ...string) predicate.M {
	field := predicate.F[string](r.identity.field)
	if len(ids) == 1 {
		return predicate.Eq(field, ids[0]).Render(r.identity.field)
	}
	return predicate.In(field, ids...).Render(r.identity.field)
}

func (r *Repository[T]) find(ctx context.Context, opts store.FindOpts) (store.Documents, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Find(ctx, opts)
}

func (r *Repository[T]) decode(doc *store.Document) (T, error) {
	var record T
	err := r.identity.fromStorage(doc, &record)
	return record, err
}

func (r *Repository[T]) decodeAll(docs store.Documents) ([]T, error) {
	records := make([]T, 0, len(docs))
	for _, doc := range docs {
		record, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *Repository[T]) first(ctx context.Context, opts store.FindOpts) (*T, error) {
	opts.Limit = 1
	docs, err := r.find(ctx, opts)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	record, err := r.decode(docs[0])
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Get returns the record with the given id, or nil when there is none
func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	return r.first(ctx, store.FindOpts{Filter: r.idFilter(id)})
}

// GetOrDefault returns the record with the given id, or fallback when there is none
func (r *Repository[T]) GetOrDefault(ctx context.Context, id string, fallback T) (T, error) {
	record, err := r.Get(ctx, id)
	if err != nil {
		return fallback, err
	}
	if record == nil {
		return fallback, nil
	}
	return *record, nil
}

// Exists reports whether a record with the given id exists
func (r *Repository[T]) Exists(ctx context.Context, id string) (bool, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return false, err
	}
	count, err := coll.Count(ctx, r.idFilter(id))
	return count > 0, err
}

// getMany fetches the documents of the distinct non-empty ids in batches. Batches run concurrently
// unless the repository is bound to a session.
func (r *Repository[T]) getMany(ctx context.Context, ids []string) (store.Documents, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return nil, nil
	}
	chunks := lo.Chunk(ids, batchSize)
	if r.m.Session() != nil {
		var docs store.Documents
		for _, chunk := range chunks {
			found, err := r.find(ctx, store.FindOpts{Filter: r.idFilter(chunk...)})
			if err != nil {
				return nil, err
			}
			docs = append(docs, found...)
		}
		return docs, nil
	}
	var (
		mu   sync.Mutex
		docs store.Documents
	)
	egp, ctx := errgroup.WithContext(ctx)
	egp.SetLimit(batchConcurrency)
	for _, chunk := range chunks {
		chunk := chunk
		egp.Go(func() error {
			found, err := r.find(ctx, store.FindOpts{Filter: r.idFilter(chunk...)})
			if err != nil {
				return err
			}
			mu.Lock()
			docs = append(docs, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := egp.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetMany returns the records of the given ids in no particular order. Each stored id appears once.
func (r *Repository[T]) GetMany(ctx context.Context, ids []string) ([]T, error) {
	docs, err := r.getMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	return r.decodeAll(docs)
}

// GetManyAsMap returns the records of the given ids keyed by id. Duplicate and empty ids are dropped.
func (r *Repository[T]) GetManyAsMap(ctx context.Context, ids []string) (map[string]T, error) {
	docs, err := r.getMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	records := make(map[string]T, len(docs))
	for _, doc := range docs {
		record, err := r.decode(doc)
		if err != nil {
			return nil, err
		}
		records[doc.ID()] = record
	}
	return records, nil
}

// GetAll returns every record in the collection
func (r *Repository[T]) GetAll(ctx context.Context) ([]T, error) {
	return r.FindAll(ctx, predicate.Empty())
}

// Find returns the first record matching the predicate, or nil when there is none
func (r *Repository[T]) Find(ctx context.Context, where predicate.Predicate) (*T, error) {
	return r.first(ctx, store.FindOpts{Filter: where.Render(r.identity.field)})
}

// FindAll returns every record matching the predicate
func (r *Repository[T]) FindAll(ctx context.Context, where predicate.Predicate) ([]T, error) {
	docs, err := r.find(ctx, store.FindOpts{Filter: where.Render(r.identity.field)})
	if err != nil {
		return nil, err
	}
	return r.decodeAll(docs)
}

// Count returns the number of records matching the predicate
func (r *Repository[T]) Count(ctx context.Context, where predicate.Predicate) (int64, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return 0, err
	}
	return coll.Count(ctx, where.Render(r.identity.field))
}

// Query returns a cursor over the records matching the predicate
func (r *Repository[T]) Query(where predicate.Predicate) Cursor[T] {
	return Cursor[T]{
		repo:  r,
		where: where,
	}
}

// Insert stores a new record, assigning an identity if it has none, and returns the stored record.
// A record with the same identity is a Conflict error.
func (r *Repository[T]) Insert(ctx context.Context, record T) (T, error) {
	doc, err := r.identity.toStorage(record)
	if err != nil {
		return record, err
	}
	if err := assignID(doc); err != nil {
		return record, err
	}
	coll, err := r.collection(ctx)
	if err != nil {
		return record, err
	}
	if err := coll.Insert(ctx, doc); err != nil {
		return record, err
	}
	return r.decode(doc)
}

// Replace overwrites the stored record with the same identity. Nothing happens when there is none.
func (r *Repository[T]) Replace(ctx context.Context, record T) error {
	doc, err := r.identity.toStorage(record)
	if err != nil {
		return err
	}
	if doc.ID() == "" {
		return errors.New(errors.Validation, "cannot replace a %s record without %s", r.name, r.identity.field)
	}
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}
	_, err = coll.Replace(ctx, doc, false)
	return err
}

// Update overwrites the stored record with the same identity, creating it when there is none, and
// returns the stored record. A record without identity is assigned one.
func (r *Repository[T]) Update(ctx context.Context, record T) (T, error) {
	doc, err := r.identity.toStorage(record)
	if err != nil {
		return record, err
	}
	if err := assignID(doc); err != nil {
		return record, err
	}
	coll, err := r.collection(ctx)
	if err != nil {
		return record, err
	}
	if _, err := coll.Replace(ctx, doc, true); err != nil {
		return record, err
	}
	return r.decode(doc)
}

// Delete deletes the record with the given id and reports whether it existed
func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return false, err
	}
	return coll.Delete(ctx, id)
}

// DeleteMany deletes the records matching the predicate and returns how many were removed
func (r *Repository[T]) DeleteMany(ctx context.Context, where predicate.Predicate) (int64, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return 0, err
	}
	return coll.DeleteMany(ctx, where.Render(r.identity.field))
}
