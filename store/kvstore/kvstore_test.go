package kvstore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/predicate"
	"github.com/autom8ter/docrepo/store"
	"github.com/autom8ter/docrepo/store/kvstore"
	"github.com/autom8ter/docrepo/store/registry"
	"github.com/stretchr/testify/assert"
)

func newDB(t *testing.T) *kvstore.DB {
	db, err := kvstore.Open("badger", map[string]any{})
	assert.Nil(t, err)
	t.Cleanup(func() {
		assert.Nil(t, db.Close(context.Background()))
	})
	return db
}

func doc(t *testing.T, value string) *store.Document {
	d, err := store.NewDocumentFromBytes([]byte(value))
	assert.Nil(t, err)
	return d
}

func seed(t *testing.T, c store.Collection) {
	ctx := context.Background()
	for _, value := range []string{
		`{"_id":"1","name":"alice","age":30,"tags":["admin","dev"],"address":{"city":"Denver"},"pets":[{"name":"rex"}]}`,
		`{"_id":"2","name":"bob","age":25,"tags":["dev"],"address":{"city":"Boston"},"pets":[]}`,
		`{"_id":"3","name":"carol","age":41,"tags":[],"address":{"city":"Denver"},"nickname":null}`,
		`{"_id":"4","name":"dave","age":19}`,
	} {
		assert.Nil(t, c.Insert(ctx, doc(t, value)))
	}
}

func ids(docs store.Documents) []string {
	return docs.IDs()
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	users := db.Collection("user")
	seed(t, users)
	var (
		id       = predicate.F[string]("id")
		name     = predicate.F[string]("name")
		nickname = predicate.F[string]("nickname")
		age      = predicate.F[int]("age")
		tags     = predicate.F[[]string]("tags")
		city     = predicate.Prop[string](predicate.F[struct{}]("address"), "city")
		petName  = predicate.ArrayProp[string](predicate.F[[]struct{}]("pets"), "name")
	)
	cases := []struct {
		name     string
		filter   predicate.Predicate
		expected []string
	}{
		{"empty", predicate.Empty(), []string{"1", "2", "3", "4"}},
		{"eq id", predicate.Eq(id, "2"), []string{"2"}},
		{"eq", predicate.Eq(name, "carol"), []string{"3"}},
		{"neq", predicate.Neq(name, "carol"), []string{"1", "2", "4"}},
		{"gt", predicate.Gt(age, 25), []string{"1", "3"}},
		{"gte", predicate.Gte(age, 25), []string{"1", "2", "3"}},
		{"lt", predicate.Lt(age, 25), []string{"4"}},
		{"lte", predicate.Lte(age, 25), []string{"2", "4"}},
		{"regex", predicate.Regex(name, "^(a|b)"), []string{"1", "2"}},
		{"includes", predicate.Includes(tags, "dev"), []string{"1", "2"}},
		{"not includes", predicate.Not(predicate.Includes(tags, "dev")), []string{"3", "4"}},
		{"in", predicate.In(id, "1", "4", "9"), []string{"1", "4"}},
		{"not in", predicate.Not(predicate.In(id, "1", "4")), []string{"2", "3"}},
		{"nested", predicate.Eq(city, "Denver"), []string{"1", "3"}},
		{"array prop", predicate.Eq(petName, "rex"), []string{"1"}},
		{"exists", predicate.Exists(tags), []string{"1", "2", "3"}},
		{"not exists", predicate.NotExists(tags), []string{"4"}},
		{"is null", predicate.IsNull(nickname), []string{"1", "2", "3", "4"}},
		{"not null", predicate.Not(predicate.IsNull(nickname)), nil},
		{"and", predicate.And(predicate.Eq(city, "Denver"), predicate.Gt(age, 35)), []string{"3"}},
		{"or", predicate.Or(predicate.Eq(name, "bob"), predicate.Lt(age, 20)), []string{"2", "4"}},
		{"not and", predicate.Not(predicate.And(predicate.Eq(city, "Denver"), predicate.Gt(age, 35))), []string{"1", "2", "4"}},
		{"not regex", predicate.Not(predicate.Regex(name, "^(a|b)")), []string{"3", "4"}},
		{"not empty", predicate.Not(predicate.Empty()), nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			docs, err := users.Find(ctx, store.FindOpts{Filter: c.filter.Render("id")})
			assert.Nil(t, err)
			assert.ElementsMatch(t, c.expected, ids(docs))
			count, err := users.Count(ctx, c.filter.Render("id"))
			assert.Nil(t, err)
			assert.Equal(t, int64(len(c.expected)), count)
		})
	}
	t.Run("sort skip limit", func(t *testing.T) {
		docs, err := users.Find(ctx, store.FindOpts{
			Sort: []store.SortField{{Field: "age", Asc: false}},
		})
		assert.Nil(t, err)
		assert.Equal(t, []string{"3", "1", "2", "4"}, ids(docs))
		docs, err = users.Find(ctx, store.FindOpts{
			Sort:  []store.SortField{{Field: "age", Asc: true}},
			Skip:  1,
			Limit: 2,
		})
		assert.Nil(t, err)
		assert.Equal(t, []string{"2", "1"}, ids(docs))
		docs, err = users.Find(ctx, store.FindOpts{Skip: 10})
		assert.Nil(t, err)
		assert.Len(t, docs, 0)
	})
	t.Run("sort missing first", func(t *testing.T) {
		docs, err := users.Find(ctx, store.FindOpts{
			Sort: []store.SortField{{Field: "address.city", Asc: true}, {Field: "age", Asc: true}},
		})
		assert.Nil(t, err)
		assert.Equal(t, []string{"4", "2", "1", "3"}, ids(docs))
	})
	t.Run("invalid regex", func(t *testing.T) {
		_, err := users.Find(ctx, store.FindOpts{Filter: predicate.Regex(name, "(").Render("id")})
		assert.True(t, errors.Is(err, errors.Validation))
	})
	t.Run("unsupported operator", func(t *testing.T) {
		_, err := users.Find(ctx, store.FindOpts{Filter: predicate.M{"age": predicate.M{"$near": 1}}})
		assert.True(t, errors.Is(err, errors.Validation))
	})
	t.Run("collections are isolated", func(t *testing.T) {
		count, err := db.Collection("users").Count(ctx, predicate.M{})
		assert.Nil(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func TestWrite(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	users := db.Collection("user")
	t.Run("insert", func(t *testing.T) {
		assert.Nil(t, users.Insert(ctx, doc(t, `{"_id":"1","name":"alice"}`)))
	})
	t.Run("insert duplicate", func(t *testing.T) {
		err := users.Insert(ctx, doc(t, `{"_id":"1","name":"bob"}`))
		assert.True(t, errors.Is(err, errors.Conflict))
	})
	t.Run("insert without id", func(t *testing.T) {
		err := users.Insert(ctx, doc(t, `{"name":"bob"}`))
		assert.True(t, errors.Is(err, errors.Validation))
	})
	t.Run("replace missing", func(t *testing.T) {
		result, err := users.Replace(ctx, doc(t, `{"_id":"2","name":"bob"}`), false)
		assert.Nil(t, err)
		assert.Equal(t, store.UpdateResult{}, result)
		count, err := users.Count(ctx, predicate.M{})
		assert.Nil(t, err)
		assert.Equal(t, int64(1), count)
	})
	t.Run("upsert missing", func(t *testing.T) {
		result, err := users.Replace(ctx, doc(t, `{"_id":"2","name":"bob"}`), true)
		assert.Nil(t, err)
		assert.True(t, result.Upserted)
	})
	t.Run("replace existing", func(t *testing.T) {
		result, err := users.Replace(ctx, doc(t, `{"_id":"2","name":"robert"}`), false)
		assert.Nil(t, err)
		assert.Equal(t, int64(1), result.Matched)
		docs, err := users.Find(ctx, store.FindOpts{Filter: predicate.M{"_id": "2"}})
		assert.Nil(t, err)
		assert.Equal(t, "robert", docs[0].Get("name"))
		assert.False(t, docs[0].Exists("age"))
	})
	t.Run("delete", func(t *testing.T) {
		deleted, err := users.Delete(ctx, "2")
		assert.Nil(t, err)
		assert.True(t, deleted)
		deleted, err = users.Delete(ctx, "2")
		assert.Nil(t, err)
		assert.False(t, deleted)
	})
	t.Run("delete many", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			assert.Nil(t, users.Insert(ctx, doc(t, fmt.Sprintf(`{"_id":"batch-%d","batch":true}`, i))))
		}
		deleted, err := users.DeleteMany(ctx, predicate.M{"batch": true})
		assert.Nil(t, err)
		assert.Equal(t, int64(5), deleted)
		count, err := users.Count(ctx, predicate.M{})
		assert.Nil(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestIndexes(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	users := db.Collection("user")
	emailIdx := store.Index{Name: "email_unique", Fields: []string{"email"}, Unique: true}
	assert.Nil(t, users.EnsureIndexes(ctx, []store.Index{emailIdx, {Name: "name", Fields: []string{"name"}}}))
	assert.Nil(t, users.EnsureIndexes(ctx, []store.Index{emailIdx}))
	t.Run("unique violation", func(t *testing.T) {
		assert.Nil(t, users.Insert(ctx, doc(t, `{"_id":"1","email":"a@b.c"}`)))
		err := users.Insert(ctx, doc(t, `{"_id":"2","email":"a@b.c"}`))
		assert.True(t, errors.Is(err, errors.Conflict))
		_, err = users.Replace(ctx, doc(t, `{"_id":"3","email":"a@b.c"}`), true)
		assert.True(t, errors.Is(err, errors.Conflict))
	})
	t.Run("documents without the field", func(t *testing.T) {
		assert.Nil(t, users.Insert(ctx, doc(t, `{"_id":"4"}`)))
		assert.Nil(t, users.Insert(ctx, doc(t, `{"_id":"5"}`)))
	})
	t.Run("replace keeps own entry", func(t *testing.T) {
		_, err := users.Replace(ctx, doc(t, `{"_id":"1","email":"a@b.c","name":"alice"}`), false)
		assert.Nil(t, err)
	})
	t.Run("value is released on change", func(t *testing.T) {
		_, err := users.Replace(ctx, doc(t, `{"_id":"1","email":"x@b.c"}`), false)
		assert.Nil(t, err)
		assert.Nil(t, users.Insert(ctx, doc(t, `{"_id":"2","email":"a@b.c"}`)))
	})
	t.Run("value is released on delete", func(t *testing.T) {
		_, err := users.Delete(ctx, "2")
		assert.Nil(t, err)
		assert.Nil(t, users.Insert(ctx, doc(t, `{"_id":"6","email":"a@b.c"}`)))
	})
	t.Run("building over duplicates", func(t *testing.T) {
		accounts := db.Collection("account")
		assert.Nil(t, accounts.Insert(ctx, doc(t, `{"_id":"1","owner":"alice"}`)))
		assert.Nil(t, accounts.Insert(ctx, doc(t, `{"_id":"2","owner":"alice"}`)))
		err := accounts.EnsureIndexes(ctx, []store.Index{{Name: "owner", Fields: []string{"owner"}, Unique: true}})
		assert.True(t, errors.Is(err, errors.Conflict))
		assert.Nil(t, accounts.Insert(ctx, doc(t, `{"_id":"3","owner":"alice"}`)))
	})
	t.Run("integers beyond float precision", func(t *testing.T) {
		devices := db.Collection("device")
		assert.Nil(t, devices.EnsureIndexes(ctx, []store.Index{{Name: "serial_idx", Fields: []string{"serial"}, Unique: true}}))
		assert.Nil(t, devices.Insert(ctx, doc(t, `{"_id":"a","serial":9007199254740992}`)))
		assert.Nil(t, devices.Insert(ctx, doc(t, `{"_id":"b","serial":9007199254740993}`)))
		err := devices.Insert(ctx, doc(t, `{"_id":"c","serial":9007199254740993}`))
		assert.True(t, errors.Is(err, errors.Conflict))

		serial := predicate.F[int64]("serial")
		count, err := devices.Count(ctx, predicate.Eq(serial, int64(1<<53+1)).Render("id"))
		assert.Nil(t, err)
		assert.Equal(t, int64(1), count)
		docs, err := devices.Find(ctx, store.FindOpts{Filter: predicate.Eq(serial, int64(1<<53+1)).Render("id")})
		assert.Nil(t, err)
		assert.Equal(t, []string{"b"}, ids(docs))
		docs, err = devices.Find(ctx, store.FindOpts{Filter: predicate.Gt(serial, int64(1<<53)).Render("id")})
		assert.Nil(t, err)
		assert.Equal(t, []string{"b"}, ids(docs))
		docs, err = devices.Find(ctx, store.FindOpts{Sort: []store.SortField{{Field: "serial", Asc: false}}})
		assert.Nil(t, err)
		assert.Equal(t, []string{"b", "a"}, ids(docs))
	})
}

func TestTransact(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	users := db.Collection("user")
	t.Run("commit", func(t *testing.T) {
		assert.Nil(t, db.Transact(ctx, store.DefaultTxOpts(), func(ctx context.Context, s store.Session) error {
			assert.NotEmpty(t, s.ID())
			bound := users.WithSession(s)
			assert.Nil(t, bound.Insert(ctx, doc(t, `{"_id":"1"}`)))
			count, err := bound.Count(ctx, predicate.M{})
			assert.Nil(t, err)
			assert.Equal(t, int64(1), count)
			return nil
		}))
		count, err := users.Count(ctx, predicate.M{})
		assert.Nil(t, err)
		assert.Equal(t, int64(1), count)
	})
	t.Run("abort", func(t *testing.T) {
		err := db.Transact(ctx, store.DefaultTxOpts(), func(ctx context.Context, s store.Session) error {
			bound := users.WithSession(s)
			assert.Nil(t, bound.Insert(ctx, doc(t, `{"_id":"2"}`)))
			_, err := bound.Delete(ctx, "1")
			assert.Nil(t, err)
			return errors.New(errors.Internal, "abort")
		})
		assert.NotNil(t, err)
		docs, err := users.Find(ctx, store.FindOpts{})
		assert.Nil(t, err)
		assert.Equal(t, []string{"1"}, ids(docs))
	})
	t.Run("ended session", func(t *testing.T) {
		var leaked store.Session
		assert.Nil(t, db.Transact(ctx, store.DefaultTxOpts(), func(ctx context.Context, s store.Session) error {
			leaked = s
			return nil
		}))
		_, err := users.WithSession(leaked).Count(ctx, predicate.M{})
		assert.True(t, errors.Is(err, errors.Forbidden))
	})
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	first, err := db.NewLocker("migrate", time.Second)
	assert.Nil(t, err)
	second, err := db.NewLocker("migrate", time.Second)
	assert.Nil(t, err)
	gotLock, err := first.TryLock(ctx)
	assert.Nil(t, err)
	assert.True(t, gotLock)
	gotLock, err = second.TryLock(ctx)
	assert.Nil(t, err)
	assert.False(t, gotLock)
	first.Unlock()
	gotLock, err = second.TryLock(ctx)
	assert.Nil(t, err)
	assert.True(t, gotLock)
	second.Unlock()
	t.Run("non-positive lease interval", func(t *testing.T) {
		_, err := db.NewLocker("migrate", 0)
		assert.True(t, errors.Is(err, errors.Validation))
		_, err = db.NewLocker("migrate", -time.Second)
		assert.True(t, errors.Is(err, errors.Validation))
	})
}

func TestRegistry(t *testing.T) {
	assert.Subset(t, registry.Providers(), []string{"badger", "sqlite", "tikv"})
	db, err := registry.Open(context.Background(), "sqlite", map[string]any{"path": t.TempDir() + "/docs.db"})
	assert.Nil(t, err)
	users := db.Collection("user")
	assert.Nil(t, users.Insert(context.Background(), doc(t, `{"_id":"1","name":"alice"}`)))
	docs, err := users.Find(context.Background(), store.FindOpts{Filter: predicate.M{"name": "alice"}})
	assert.Nil(t, err)
	assert.Equal(t, []string{"1"}, ids(docs))
	assert.Nil(t, db.Close(context.Background()))
	_, err = registry.Open(context.Background(), "nope", nil)
	assert.True(t, errors.Is(err, errors.NotFound))
}
