package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/store"
)

// Opener opens a store.Database
type Opener func(ctx context.Context, params map[string]any) (store.Database, error)

var (
	mu      sync.RWMutex
	openers = map[string]Opener{}
)

// Register registers a store opener under the given name
func Register(name string, opener Opener) {
	mu.Lock()
	defer mu.Unlock()
	openers[name] = opener
}

// Open opens a registered store provider
func Open(ctx context.Context, name string, params map[string]any) (store.Database, error) {
	mu.RLock()
	opener, ok := openers[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.NotFound, "'%s' is not a registered store provider", name)
	}
	return opener(ctx, params)
}

// Providers returns the names of the registered store providers
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	var names []string
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
