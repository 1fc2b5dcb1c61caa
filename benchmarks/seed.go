package benchmarks

import (
	"context"

	"github.com/autom8ter/docrepo"
	"github.com/autom8ter/docrepo/testutil"
)

// seedDatabase inserts users with 3 tasks each inside one transaction and returns the user ids
func seedDatabase(ctx context.Context, m *docrepo.Manager, count int) ([]string, error) {
	var ids []string
	if err := m.Tx(ctx, func(ctx context.Context, tx *docrepo.Manager) error {
		users, err := docrepo.NewRepository[testutil.User](tx, "user")
		if err != nil {
			return err
		}
		tasks, err := docrepo.NewRepository[testutil.Task](tx, "task")
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			u, err := users.Insert(ctx, testutil.NewUser())
			if err != nil {
				return err
			}
			ids = append(ids, u.ID)
			for j := 0; j < 3; j++ {
				if _, err := tasks.Insert(ctx, testutil.NewTask(u.ID)); err != nil {
					return err
				}
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return ids, nil
}
