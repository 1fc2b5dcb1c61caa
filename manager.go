package docrepo

import (
	"context"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/store"
	"github.com/autom8ter/docrepo/store/registry"
	"github.com/autom8ter/docrepo/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// Manager owns a store.Database together with the collections registered on it. A Manager is
// either unbound, or bound to the session of one atomic scope (see Tx). Bound copies share the
// collection state of the Manager they were derived from.
type Manager struct {
	db      store.Database
	logger  Logger
	state   *collectionState
	session store.Session
	pending []CollectionConfig
}

type collectionState struct {
	configs *xsync.MapOf[string, CollectionConfig]
	// ensured holds the collections whose indexes have been ensured
	ensured *xsync.MapOf[string, struct{}]
}

// Open opens a registered store provider and returns a Manager over it
func Open(ctx context.Context, provider string, params map[string]any, opts ...Opt) (*Manager, error) {
	db, err := registry.Open(ctx, provider, params)
	if err != nil {
		return nil, err
	}
	m, err := New(db, opts...)
	if err != nil {
		_ = db.Close(ctx)
		return nil, err
	}
	m.logger.Info(ctx, "opened document store", map[string]any{"provider": provider})
	return m, nil
}

// New returns a Manager over the database
func New(db store.Database, opts ...Opt) (*Manager, error) {
	m := &Manager{
		db: db,
		state: &collectionState{
			configs: xsync.NewMapOf[string, CollectionConfig](),
			ensured: xsync.NewMapOf[string, struct{}](),
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		logger, err := NewLogger("info", map[string]any{})
		if err != nil {
			return nil, err
		}
		m.logger = logger
	}
	if err := m.Register(m.pending...); err != nil {
		return nil, err
	}
	m.pending = nil
	return m, nil
}

// Register validates and registers collection configs. Re-registering a name replaces its config
// and ensures its indexes again on next use.
func (m *Manager) Register(configs ...CollectionConfig) error {
	for _, cfg := range configs {
		if err := util.ValidateStruct(&cfg); err != nil {
			return errors.Wrap(err, 0, "invalid collection config: %s", cfg.Name)
		}
	}
	for _, cfg := range configs {
		m.state.configs.Store(cfg.Name, cfg)
		m.state.ensured.Delete(cfg.Name)
	}
	return nil
}

// Config returns the registered config of the collection
func (m *Manager) Config(collection string) (CollectionConfig, bool) {
	return m.state.configs.Load(collection)
}

// Logger returns the manager's logger
func (m *Manager) Logger() Logger {
	return m.logger
}

// Database returns the underlying store
func (m *Manager) Database() store.Database {
	return m.db
}

// Session returns the session the manager is bound to, or nil
func (m *Manager) Session() store.Session {
	return m.session
}

// WithSession returns a copy of the manager bound to the session. Every repository built from the
// copy runs its operations inside the session.
func (m *Manager) WithSession(session store.Session) *Manager {
	return &Manager{
		db:      m.db,
		logger:  m.logger,
		state:   m.state,
		session: session,
	}
}

// Collection returns a handle to a registered collection, bound to the manager's session if any.
// The collection's indexes are ensured on first use.
func (m *Manager) Collection(ctx context.Context, name string) (store.Collection, error) {
	cfg, ok := m.state.configs.Load(name)
	if !ok {
		return nil, errors.New(errors.Configuration, "collection %s is not registered", name)
	}
	coll := m.db.Collection(name)
	if m.session != nil {
		coll = coll.WithSession(m.session)
	}
	if err := m.ensureIndexes(ctx, coll, cfg); err != nil {
		return nil, err
	}
	return coll, nil
}

func (m *Manager) ensureIndexes(ctx context.Context, coll store.Collection, cfg CollectionConfig) error {
	if _, ok := m.state.ensured.Load(cfg.Name); ok || len(cfg.Indexes) == 0 {
		return nil
	}
	if err := coll.EnsureIndexes(ctx, cfg.Indexes); err != nil {
		return errors.Wrap(err, 0, "failed to ensure indexes on %s", cfg.Name)
	}
	m.logger.Debug(ctx, "ensured indexes", map[string]any{
		"collection": cfg.Name,
		"indexes":    len(cfg.Indexes),
	})
	// index writes made inside a session are only durable once the session commits
	if m.session == nil {
		m.state.ensured.Store(cfg.Name, struct{}{})
	}
	return nil
}

// ensureAll ensures the indexes of every registered collection outside of any session
func (m *Manager) ensureAll(ctx context.Context) error {
	var configs []CollectionConfig
	m.state.configs.Range(func(name string, cfg CollectionConfig) bool {
		configs = append(configs, cfg)
		return true
	})
	for _, cfg := range configs {
		if err := m.ensureIndexes(ctx, m.db.Collection(cfg.Name), cfg); err != nil {
			return err
		}
	}
	return nil
}

// Tx runs fn inside one atomic scope that reads from the primary with local read concern and
// majority acknowledged writes. The scope commits when fn returns nil and aborts otherwise.
// fn receives a manager bound to the scope's session. Calling Tx on a bound manager joins its scope.
func (m *Manager) Tx(ctx context.Context, fn func(ctx context.Context, tx *Manager) error) error {
	if m.session != nil {
		return fn(ctx, m)
	}
	if err := m.ensureAll(ctx); err != nil {
		return err
	}
	return m.db.Transact(ctx, store.DefaultTxOpts(), func(ctx context.Context, session store.Session) error {
		ctx = withSession(ctx, session.ID())
		return fn(ctx, m.WithSession(session))
	})
}

// Close forgets every registered collection config and closes the database
func (m *Manager) Close(ctx context.Context) error {
	if m.session != nil {
		return errors.New(errors.Forbidden, "a session-bound manager cannot close the database")
	}
	m.state.configs.Clear()
	m.state.ensured.Clear()
	if err := m.db.Close(ctx); err != nil {
		return err
	}
	m.logger.Info(ctx, "closed document store", map[string]any{})
	return nil
}
