package tikv

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/autom8ter/docrepo/kv"
	"github.com/stretchr/testify/assert"
)

func TestOpenValidation(t *testing.T) {
	_, err := Open(nil)
	assert.NotNil(t, err)
}

func Test(t *testing.T) {
	pdAddr := os.Getenv("DOCREPO_TIKV_PD")
	if pdAddr == "" {
		t.Skip("DOCREPO_TIKV_PD is not set")
	}
	ctx := context.Background()
	db, err := Open(strings.Split(pdAddr, ","))
	assert.NoError(t, err)
	defer db.Close(ctx)
	prefix := fmt.Sprintf("docrepo_test_%d/", os.Getpid())
	data := map[string]string{}
	for i := 0; i < 10; i++ {
		data[prefix+fmt.Sprint(i)] = fmt.Sprint(i)
	}
	t.Run("set", func(t *testing.T) {
		assert.Nil(t, db.Tx(ctx, true, func(tx kv.Tx) error {
			for k, v := range data {
				assert.Nil(t, tx.Set(ctx, []byte(k), []byte(v)))
			}
			return nil
		}))
	})
	t.Run("get", func(t *testing.T) {
		assert.Nil(t, db.Tx(ctx, false, func(tx kv.Tx) error {
			for k, v := range data {
				data, err := tx.Get(ctx, []byte(k))
				assert.NoError(t, err)
				assert.EqualValues(t, v, string(data))
			}
			return nil
		}))
	})
	t.Run("iterate", func(t *testing.T) {
		assert.Nil(t, db.Tx(ctx, false, func(tx kv.Tx) error {
			iter, err := tx.NewIterator(kv.IterOpts{Prefix: []byte(prefix)})
			assert.NoError(t, err)
			defer iter.Close()
			i := 0
			for iter.Valid() {
				i++
				assert.Nil(t, iter.Next())
			}
			assert.Equal(t, len(data), i)
			return nil
		}))
	})
	t.Run("cleanup", func(t *testing.T) {
		assert.Nil(t, db.Tx(ctx, true, func(tx kv.Tx) error {
			for k := range data {
				assert.Nil(t, tx.Delete(ctx, []byte(k)))
			}
			return nil
		}))
	})
}
