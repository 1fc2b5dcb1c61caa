package migrate

import (
	"context"
	"time"

	"github.com/autom8ter/docrepo"
	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/predicate"
	"github.com/autom8ter/docrepo/store"
	"github.com/samber/lo"
	"go.uber.org/multierr"
)

// DefaultLedgerCollection is the collection holding the ledger unless WithLedgerCollection is used
const DefaultLedgerCollection = "migrations"

// Runner applies migrations at most once each and records their outcome in a ledger collection
type Runner struct {
	m             *docrepo.Manager
	collection    string
	leaseInterval time.Duration
	locking       store.Locking
}

// Opt configures a Runner
type Opt func(r *Runner)

// WithLedgerCollection sets the ledger collection name
func WithLedgerCollection(name string) Opt {
	return func(r *Runner) {
		r.collection = name
	}
}

// WithLeaseInterval sets the lease interval of the run lock
func WithLeaseInterval(interval time.Duration) Opt {
	return func(r *Runner) {
		r.leaseInterval = interval
	}
}

// WithLocking sets the lock provider of the run lock. By default the database is used when it
// implements store.Locking, and runs are not locked otherwise.
func WithLocking(locking store.Locking) Opt {
	return func(r *Runner) {
		r.locking = locking
	}
}

// New returns a Runner and registers its ledger collection on the manager
func New(m *docrepo.Manager, opts ...Opt) (*Runner, error) {
	r := &Runner{
		m:             m,
		collection:    DefaultLedgerCollection,
		leaseInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.leaseInterval <= 0 {
		return nil, errors.New(errors.Validation, "lease interval must be positive")
	}
	if err := m.Register(docrepo.CollectionConfig{
		Name:    r.collection,
		IDField: "id",
	}); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) ledger() (*docrepo.Repository[Record], error) {
	return docrepo.NewRepository[Record](r.m, r.collection)
}

// Ledger returns every ledger record ordered by start date
func (r *Runner) Ledger(ctx context.Context) ([]Record, error) {
	ledger, err := r.ledger()
	if err != nil {
		return nil, err
	}
	return ledger.Query(predicate.Empty()).Sort(predicate.F[int64]("startDate"), true).Array(ctx)
}

// Resolve deletes the ledger record of a migration that did not succeed so that the next run
// attempts it again. Successful records cannot be resolved.
func (r *Runner) Resolve(ctx context.Context, id string) error {
	ledger, err := r.ledger()
	if err != nil {
		return err
	}
	rec, err := ledger.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.New(errors.NotFound, "migration %s has no ledger record", id)
	}
	if rec.Status == Success {
		return errors.New(errors.Forbidden, "migration %s succeeded and cannot be resolved", id)
	}
	if _, err := ledger.Delete(ctx, id); err != nil {
		return err
	}
	r.m.Logger().Warn(ctx, "resolved migration", map[string]any{
		"migration": id,
		"status":    rec.Status,
	})
	return nil
}

// Run applies the migrations in order. Migrations with a successful ledger record are skipped. The
// run stops at the first failing migration, whose record is left as FAIL. A ledger holding any
// record that did not succeed fails the run before anything is applied.
func (r *Runner) Run(ctx context.Context, migrations []Migration) error {
	if err := validate(migrations); err != nil {
		return err
	}
	unlock, err := r.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	ledger, err := r.ledger()
	if err != nil {
		return err
	}
	records, err := ledger.GetAll(ctx)
	if err != nil {
		return errors.Wrap(err, 0, "failed to load migration ledger")
	}
	for _, rec := range records {
		if rec.Status != Success {
			return errors.New(errors.UnrepairedMigration, "migration %s is %s: resolve it before running migrations", rec.ID, rec.Status)
		}
	}
	done := lo.SliceToMap(records, func(rec Record) (string, bool) {
		return rec.ID, true
	})
	for _, migration := range migrations {
		if done[migration.ID] {
			migrationsSkipped.Inc()
			r.m.Logger().Debug(ctx, "skipping migration", map[string]any{"migration": migration.ID})
			continue
		}
		if err := r.apply(ctx, ledger, migration); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, ledger *docrepo.Repository[Record], migration Migration) error {
	start := time.Now()
	rec := Record{
		ID:        migration.ID,
		StartDate: start.UnixMilli(),
		Status:    Performing,
	}
	if _, err := ledger.Insert(ctx, rec); err != nil {
		return errors.Wrap(err, 0, "failed to record migration %s", migration.ID)
	}
	r.m.Logger().Info(ctx, "starting migration", map[string]any{"migration": migration.ID})
	cause := r.m.Tx(ctx, func(ctx context.Context, tx *docrepo.Manager) error {
		return execute(ctx, tx, migration.Up)
	})
	end := time.Now()
	rec.EndDate = lo.ToPtr(end.UnixMilli())
	migrationDuration.Update(end.Sub(start).Seconds())
	if cause != nil {
		migrationsFailed.Inc()
		rec.Status = Fail
		if err := ledger.Replace(ctx, rec); err != nil {
			cause = multierr.Append(cause, errors.Wrap(err, 0, "failed to record migration failure"))
		}
		r.m.Logger().Error(ctx, "migration failed", cause, map[string]any{
			"migration": migration.ID,
			"duration":  end.Sub(start).String(),
		})
		return errors.Wrap(cause, errors.MigrationFailure, "migration %s failed", migration.ID)
	}
	rec.Status = Success
	if err := ledger.Replace(ctx, rec); err != nil {
		return errors.Wrap(err, 0, "failed to record migration %s", migration.ID)
	}
	migrationsSucceeded.Inc()
	r.m.Logger().Info(ctx, "migration succeeded", map[string]any{
		"migration": migration.ID,
		"duration":  end.Sub(start).String(),
	})
	return nil
}

// execute runs the migration body, turning a panic into an error so the scope is aborted
func execute(ctx context.Context, tx *docrepo.Manager, fn Func) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.New(errors.Internal, "migration panicked: %v", rec)
		}
	}()
	return fn(ctx, tx)
}

// lock takes the run lock when a lock provider is available
func (r *Runner) lock(ctx context.Context) (func(), error) {
	locking := r.locking
	if locking == nil {
		dbLocking, ok := r.m.Database().(store.Locking)
		if !ok {
			return func() {}, nil
		}
		locking = dbLocking
	}
	locker, err := locking.NewLocker("migrate/"+r.collection, r.leaseInterval)
	if err != nil {
		return nil, err
	}
	gotLock, err := locker.TryLock(ctx)
	if err != nil {
		return nil, errors.Wrap(err, 0, "failed to acquire migration lock")
	}
	if !gotLock {
		return nil, errors.New(errors.Conflict, "migrations on %s are already running", r.collection)
	}
	return locker.Unlock, nil
}

func validate(migrations []Migration) error {
	seen := map[string]struct{}{}
	for i, migration := range migrations {
		if migration.ID == "" {
			return errors.New(errors.Validation, "migration %d has no id", i)
		}
		if migration.Up == nil {
			return errors.New(errors.Validation, "migration %s has no body", migration.ID)
		}
		if _, ok := seen[migration.ID]; ok {
			return errors.New(errors.Validation, "duplicate migration id: %s", migration.ID)
		}
		seen[migration.ID] = struct{}{}
	}
	return nil
}
