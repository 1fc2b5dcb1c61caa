package docrepo

import (
	"testing"

	"github.com/autom8ter/docrepo/store"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
)

type account struct {
	Key     string            `json:"key,omitempty"`
	Name    string            `json:"name"`
	Balance float64           `json:"balance"`
	Labels  map[string]string `json:"labels"`
	Owners  []string          `json:"owners"`
}

func TestIdentity(t *testing.T) {
	i := identity{field: "key"}
	t.Run("round trip", func(t *testing.T) {
		for n := 0; n < 10; n++ {
			acc := account{
				Key:     gofakeit.UUID(),
				Name:    gofakeit.Company(),
				Balance: gofakeit.Price(0, 1000),
				Labels:  map[string]string{"tier": gofakeit.Word()},
				Owners:  []string{gofakeit.Email()},
			}
			doc, err := i.toStorage(acc)
			assert.Nil(t, err)
			assert.Equal(t, acc.Key, doc.ID())
			assert.False(t, doc.Exists("key"))
			var got account
			assert.Nil(t, i.fromStorage(doc, &got))
			assert.Equal(t, acc, got)
		}
	})
	t.Run("other fields untouched", func(t *testing.T) {
		doc, err := i.toStorage(account{Key: "1", Name: "acme"})
		assert.Nil(t, err)
		assert.Equal(t, "acme", doc.Get("name"))
		assert.JSONEq(t, `{"_id":"1","name":"acme","balance":0,"labels":null,"owners":null}`, doc.String())
	})
	t.Run("from storage leaves the document untouched", func(t *testing.T) {
		doc, err := i.toStorage(account{Key: "1"})
		assert.Nil(t, err)
		var got account
		assert.Nil(t, i.fromStorage(doc, &got))
		assert.Equal(t, "1", doc.ID())
	})
	t.Run("assign id", func(t *testing.T) {
		doc, err := i.toStorage(account{Name: "acme"})
		assert.Nil(t, err)
		assert.Equal(t, "", doc.ID())
		assert.Nil(t, assignID(doc))
		assert.NotEmpty(t, doc.ID())
		id := doc.ID()
		assert.Nil(t, assignID(doc))
		assert.Equal(t, id, doc.ID())
	})
	t.Run("reserved key as identity field", func(t *testing.T) {
		type raw struct {
			ID string `json:"_id"`
		}
		same := identity{field: store.IDKey}
		doc, err := same.toStorage(raw{ID: "1"})
		assert.Nil(t, err)
		assert.Equal(t, "1", doc.ID())
		var got raw
		assert.Nil(t, same.fromStorage(doc, &got))
		assert.Equal(t, "1", got.ID)
	})
}
