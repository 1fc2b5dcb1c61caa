package predicate_test

import (
	"encoding/json"
	"testing"

	"github.com/autom8ter/docrepo/predicate"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

type address struct {
	City string `json:"city"`
}

type pet struct {
	Name string `json:"name"`
}

var (
	id       = predicate.F[string]("id")
	name     = predicate.F[string]("name")
	age      = predicate.F[int]("age")
	tags     = predicate.F[[]string]("tags")
	addr     = predicate.F[address]("address")
	city     = predicate.Prop[string](addr, "city")
	pets     = predicate.F[[]pet]("pets")
	petName  = predicate.ArrayProp[string](pets, "name")
	firstPet = predicate.At(pets, 0)
)

func TestRender(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	cases := map[string]predicate.Predicate{
		"empty":      predicate.Empty(),
		"eq_id":      predicate.Eq(id, "abc"),
		"eq":         predicate.Eq(name, "bob"),
		"neq":        predicate.Neq(name, "bob"),
		"is_null":    predicate.IsNull(name),
		"exists":     predicate.Exists(name),
		"not_exists": predicate.NotExists(name),
		"regex":      predicate.Regex(name, "^b"),
		"gt":         predicate.Gt(age, 21),
		"gte":        predicate.Gte(age, 21),
		"lt":         predicate.Lt(age, 21),
		"lte":        predicate.Lte(age, 21),
		"includes":   predicate.Includes(tags, "admin"),
		"in":         predicate.In(id, "a", "b"),
		"nested":     predicate.Eq(city, "Denver"),
		"array_prop": predicate.Eq(petName, "rex"),
		"and":        predicate.And(predicate.Eq(name, "bob"), predicate.Gt(age, 21)),
		"or":         predicate.Or(predicate.Eq(name, "bob"), predicate.Lt(age, 21)),
		"not_and":    predicate.Not(predicate.And(predicate.Eq(name, "bob"), predicate.Gt(age, 21))),
		"not_or":     predicate.Not(predicate.Or(predicate.IsNull(name), predicate.Includes(tags, "admin"))),
		"not_in":     predicate.Not(predicate.In(id, "a", "b")),
		"not_empty":  predicate.Not(predicate.Empty()),
		"not_regex":  predicate.Not(predicate.Regex(name, "^b")),
	}
	for fixture, p := range cases {
		t.Run(fixture, func(t *testing.T) {
			bits, err := json.Marshal(p.Render("id"))
			assert.Nil(t, err)
			g.Assert(t, fixture, bits)
		})
	}
}

func TestPredicate(t *testing.T) {
	t.Run("exact structure", func(t *testing.T) {
		assert.Equal(t, predicate.M{"name": "bob"}, predicate.Eq(name, "bob").Render("id"))
		assert.Equal(t, predicate.M{"age": predicate.M{"$gt": 21}}, predicate.Gt(age, 21).Render("id"))
		assert.Equal(t, predicate.M{"$and": []any{
			predicate.M{"name": "bob"},
			predicate.M{"age": predicate.M{"$gt": 21}},
		}}, predicate.And(predicate.Eq(name, "bob"), predicate.Gt(age, 21)).Render("id"))
	})
	t.Run("identity field", func(t *testing.T) {
		assert.Equal(t, predicate.M{"_id": "abc"}, predicate.Eq(id, "abc").Render("id"))
		assert.Equal(t, predicate.M{"id": "abc"}, predicate.Eq(id, "abc").Render("uid"))
	})
	t.Run("paths", func(t *testing.T) {
		assert.Equal(t, "address.city", city.Path())
		assert.Equal(t, "pets.name", petName.Path())
		assert.Equal(t, "pets.0", firstPet.Path())
		assert.Equal(t, "pets.0.name", predicate.Prop[string](firstPet, "name").Path())
	})
	t.Run("double negation", func(t *testing.T) {
		ps := []predicate.Predicate{
			predicate.Empty(),
			predicate.Eq(name, "bob"),
			predicate.IsNull(name),
			predicate.Exists(name),
			predicate.Regex(name, "^b"),
			predicate.Lte(age, 3),
			predicate.In(id, "a"),
			predicate.And(predicate.Eq(name, "bob"), predicate.Or(predicate.Gt(age, 1), predicate.NotExists(tags))),
		}
		for _, p := range ps {
			assert.Equal(t, p.Render("id"), predicate.Not(predicate.Not(p)).Render("id"))
		}
	})
	t.Run("empty combinators", func(t *testing.T) {
		assert.True(t, predicate.And().IsEmpty())
		assert.Equal(t, predicate.M{"_id": predicate.M{"$exists": false}}, predicate.Or().Render("id"))
		assert.True(t, predicate.Not(predicate.Or()).IsEmpty())
		var zero predicate.Predicate
		assert.True(t, zero.IsEmpty())
	})
	t.Run("immutable", func(t *testing.T) {
		children := []predicate.Predicate{predicate.Eq(name, "bob")}
		p := predicate.And(children...)
		children[0] = predicate.Eq(name, "alice")
		assert.Equal(t, predicate.M{"$and": []any{predicate.M{"name": "bob"}}}, p.Render("id"))
		n := predicate.Not(p)
		assert.Equal(t, predicate.M{"$and": []any{predicate.M{"name": "bob"}}}, p.Render("id"))
		assert.Equal(t, predicate.M{"$or": []any{predicate.M{"name": predicate.M{"$ne": "bob"}}}}, n.Render("id"))
	})
}
