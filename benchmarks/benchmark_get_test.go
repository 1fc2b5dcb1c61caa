package benchmarks

import (
	"context"
	"testing"

	"github.com/autom8ter/docrepo"
	"github.com/autom8ter/docrepo/testutil"
	"github.com/stretchr/testify/assert"
)

func BenchmarkGet(b *testing.B) {
	b.ReportAllocs()
	assert.Nil(b, testutil.TestManager(func(ctx context.Context, m *docrepo.Manager) {
		ids, err := seedDatabase(ctx, m, 10)
		assert.NoError(b, err)
		users, err := docrepo.NewRepository[testutil.User](m, "user")
		assert.NoError(b, err)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, err := users.Get(ctx, ids[i%len(ids)])
			assert.NoError(b, err)
		}
	}))
}

func BenchmarkGetMany(b *testing.B) {
	b.ReportAllocs()
	assert.Nil(b, testutil.TestManager(func(ctx context.Context, m *docrepo.Manager) {
		ids, err := seedDatabase(ctx, m, 250)
		assert.NoError(b, err)
		users, err := docrepo.NewRepository[testutil.User](m, "user")
		assert.NoError(b, err)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			found, err := users.GetMany(ctx, ids)
			assert.NoError(b, err)
			assert.Len(b, found, len(ids))
		}
	}))
}
