package docrepo

import (
	"github.com/autom8ter/docrepo/store"
)

// CollectionConfig registers a collection with a Manager
type CollectionConfig struct {
	// Name is the collection name
	Name string `json:"name" validate:"required,excludesall=/"`
	// IDField is the json name of the records' identity field. It is stored under the reserved _id key.
	IDField string `json:"idField" validate:"required"`
	// Indexes are ensured once per Manager before the collection is first used
	Indexes []store.Index `json:"indexes,omitempty" validate:"dive"`
}

// Opt is an option for configuring a Manager
type Opt func(m *Manager)

// WithLogger sets the manager's logger
func WithLogger(logger Logger) Opt {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithCollections registers collections with the manager
func WithCollections(configs ...CollectionConfig) Opt {
	return func(m *Manager) {
		m.pending = append(m.pending, configs...)
	}
}
