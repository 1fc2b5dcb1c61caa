package mongostore

import (
	"context"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/predicate"
	"github.com/autom8ter/docrepo/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type collection struct {
	coll    *mongo.Collection
	session *session
	err     error
}

func (c *collection) Name() string {
	return c.coll.Name()
}

func (c *collection) WithSession(s store.Session) store.Collection {
	bound, ok := s.(*session)
	if !ok {
		return &collection{coll: c.coll, err: errors.New(errors.Validation, "foreign session %T", s)}
	}
	return &collection{coll: c.coll, session: bound}
}

// context binds the session, if any, to ctx
func (c *collection) context(ctx context.Context) (context.Context, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.session == nil {
		return ctx, nil
	}
	if c.session.ended.Load() {
		return nil, errors.New(errors.Forbidden, "session %s has ended", c.session.id)
	}
	return mongo.NewSessionContext(ctx, c.session.sess), nil
}

func (c *collection) EnsureIndexes(ctx context.Context, indexes []store.Index) error {
	if len(indexes) == 0 {
		return nil
	}
	ctx, err := c.context(ctx)
	if err != nil {
		return err
	}
	var models []mongo.IndexModel
	for _, idx := range indexes {
		keys := bson.D{}
		for _, field := range idx.Fields {
			keys = append(keys, bson.E{Key: field, Value: 1})
		}
		models = append(models, mongo.IndexModel{
			Keys:    keys,
			Options: options.Index().SetName(idx.Name).SetUnique(idx.Unique),
		})
	}
	if _, err := c.coll.Indexes().CreateMany(ctx, models); err != nil {
		return wrapErr(err, "failed to ensure %s indexes", c.Name())
	}
	return nil
}

func (c *collection) Find(ctx context.Context, opts store.FindOpts) (store.Documents, error) {
	ctx, err := c.context(ctx)
	if err != nil {
		return nil, err
	}
	filter, err := toFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		sort := bson.D{}
		for _, s := range opts.Sort {
			dir := -1
			if s.Asc {
				dir = 1
			}
			sort = append(sort, bson.E{Key: s.Field, Value: dir})
		}
		findOpts.SetSort(sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	cursor, err := c.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, wrapErr(err, "failed to query %s", c.Name())
	}
	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, wrapErr(err, "failed to decode %s documents", c.Name())
	}
	docs := make(store.Documents, 0, len(results))
	for _, r := range results {
		doc, err := store.NewDocumentFrom(fromBSON(r))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *collection) Count(ctx context.Context, filter predicate.M) (int64, error) {
	ctx, err := c.context(ctx)
	if err != nil {
		return 0, err
	}
	f, err := toFilter(filter)
	if err != nil {
		return 0, err
	}
	count, err := c.coll.CountDocuments(ctx, f)
	if err != nil {
		return 0, wrapErr(err, "failed to count %s", c.Name())
	}
	return count, nil
}

func (c *collection) Insert(ctx context.Context, doc *store.Document) error {
	if doc.ID() == "" {
		return errors.New(errors.Validation, "document is missing %s", store.IDKey)
	}
	value, err := toDocument(doc)
	if err != nil {
		return err
	}
	ctx, err = c.context(ctx)
	if err != nil {
		return err
	}
	if _, err := c.coll.InsertOne(ctx, value); err != nil {
		return wrapErr(err, "failed to insert %s/%s", c.Name(), doc.ID())
	}
	return nil
}

func (c *collection) Replace(ctx context.Context, doc *store.Document, upsert bool) (store.UpdateResult, error) {
	if doc.ID() == "" {
		return store.UpdateResult{}, errors.New(errors.Validation, "document is missing %s", store.IDKey)
	}
	value, err := toDocument(doc)
	if err != nil {
		return store.UpdateResult{}, err
	}
	ctx, err = c.context(ctx)
	if err != nil {
		return store.UpdateResult{}, err
	}
	result, err := c.coll.ReplaceOne(ctx, bson.M{store.IDKey: doc.ID()}, value, options.Replace().SetUpsert(upsert))
	if err != nil {
		return store.UpdateResult{}, wrapErr(err, "failed to replace %s/%s", c.Name(), doc.ID())
	}
	return store.UpdateResult{
		Matched:  result.MatchedCount,
		Upserted: result.UpsertedCount > 0,
	}, nil
}

func (c *collection) Delete(ctx context.Context, id string) (bool, error) {
	ctx, err := c.context(ctx)
	if err != nil {
		return false, err
	}
	result, err := c.coll.DeleteOne(ctx, bson.M{store.IDKey: id})
	if err != nil {
		return false, wrapErr(err, "failed to delete %s/%s", c.Name(), id)
	}
	return result.DeletedCount > 0, nil
}

func (c *collection) DeleteMany(ctx context.Context, filter predicate.M) (int64, error) {
	ctx, err := c.context(ctx)
	if err != nil {
		return 0, err
	}
	f, err := toFilter(filter)
	if err != nil {
		return 0, err
	}
	result, err := c.coll.DeleteMany(ctx, f)
	if err != nil {
		return 0, wrapErr(err, "failed to delete from %s", c.Name())
	}
	return result.DeletedCount, nil
}

func wrapErr(err error, msg string, args ...any) error {
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrap(err, errors.Conflict, msg, args...)
	}
	return errors.Wrap(err, errors.Internal, msg, args...)
}
