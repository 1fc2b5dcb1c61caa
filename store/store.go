package store

import (
	"context"
	"time"

	"github.com/autom8ter/docrepo/predicate"
)

// IDKey is the reserved primary key of every stored document
const IDKey = predicate.IDKey

// Session is an opaque handle to an open atomic scope
type Session interface {
	// ID identifies the session in logs
	ID() string
}

// TxOpts configures the consistency of an atomic scope
type TxOpts struct {
	ReadPreference string `json:"readPreference"`
	ReadConcern    string `json:"readConcern"`
	WriteConcern   string `json:"writeConcern"`
}

// DefaultTxOpts reads from the primary with local read concern and majority acknowledged writes
func DefaultTxOpts() TxOpts {
	return TxOpts{
		ReadPreference: "primary",
		ReadConcern:    "local",
		WriteConcern:   "majority",
	}
}

// SortField orders query results by a document path
type SortField struct {
	Field string `json:"field"`
	Asc   bool   `json:"asc"`
}

// FindOpts are the options of a Find call. Zero Skip and Limit mean unbounded.
type FindOpts struct {
	Filter predicate.M `json:"filter"`
	Sort   []SortField `json:"sort,omitempty"`
	Skip   int64       `json:"skip,omitempty"`
	Limit  int64       `json:"limit,omitempty"`
}

// UpdateResult is the outcome of a Replace call
type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Upserted bool  `json:"upserted"`
}

// Index is a secondary index declared on a collection
type Index struct {
	Name   string   `json:"name" validate:"required"`
	Fields []string `json:"fields" validate:"required,min=1"`
	Unique bool     `json:"unique"`
}

// Collection is a handle to a named collection of documents
type Collection interface {
	// Name returns the collection name
	Name() string
	// WithSession returns a handle whose operations run inside the session
	WithSession(session Session) Collection
	// EnsureIndexes creates the indexes if they do not exist
	EnsureIndexes(ctx context.Context, indexes []Index) error
	// Find returns the documents matching the options
	Find(ctx context.Context, opts FindOpts) (Documents, error)
	// Count returns the number of documents matching the filter
	Count(ctx context.Context, filter predicate.M) (int64, error)
	// Insert inserts a new document. A document with the same _id is a Conflict error.
	Insert(ctx context.Context, doc *Document) error
	// Replace overwrites the document with the same _id, inserting it when upsert is true
	Replace(ctx context.Context, doc *Document, upsert bool) (UpdateResult, error)
	// Delete deletes the document with the given _id and reports whether it existed
	Delete(ctx context.Context, id string) (bool, error)
	// DeleteMany deletes the documents matching the filter and returns how many were removed
	DeleteMany(ctx context.Context, filter predicate.M) (int64, error)
}

// Database is a document store
type Database interface {
	// Collection returns a handle to the named collection
	Collection(name string) Collection
	// Transact runs fn inside one atomic scope. The scope commits when fn returns nil, aborts
	// otherwise, and is always released.
	Transact(ctx context.Context, opts TxOpts, fn func(ctx context.Context, session Session) error) error
	// Close closes the database
	Close(ctx context.Context) error
}

// Locking is implemented by databases that can hand out distributed lease locks
type Locking interface {
	NewLocker(name string, leaseInterval time.Duration) (Locker, error)
}

// Locker is a distributed lock
type Locker interface {
	// TryLock tries to acquire the lock without blocking
	TryLock(ctx context.Context) (bool, error)
	// Unlock releases the lock
	Unlock()
}
