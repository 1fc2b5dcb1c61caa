package mongostore

import (
	"context"
	"sync/atomic"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/store"
	"github.com/autom8ter/docrepo/store/registry"
	"github.com/autom8ter/docrepo/util"
	"github.com/segmentio/ksuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

func init() {
	registry.Register("mongo", func(ctx context.Context, params map[string]any) (store.Database, error) {
		var opts Options
		if err := util.Decode(params, &opts); err != nil {
			return nil, err
		}
		return Open(ctx, opts)
	})
}

// Options configures a mongo database
type Options struct {
	URI      string `json:"uri" validate:"required"`
	Database string `json:"database" validate:"required"`
	// PoolSize is both the minimum and the maximum number of pooled connections. Defaults to 4.
	PoolSize uint64 `json:"pool_size"`
}

// DB is a document store backed by a mongo database. Transactions require a replica set.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to the mongo deployment and verifies the primary is reachable
func Open(ctx context.Context, opts Options) (*DB, error) {
	if err := util.ValidateStruct(&opts); err != nil {
		return nil, err
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 4
	}
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(opts.URI).
		SetMinPoolSize(opts.PoolSize).
		SetMaxPoolSize(opts.PoolSize))
	if err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to connect to mongo")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, errors.Internal, "failed to reach mongo primary")
	}
	return &DB{
		client: client,
		db:     client.Database(opts.Database),
	}, nil
}

// Collection returns a handle to the named collection
func (d *DB) Collection(name string) store.Collection {
	return &collection{coll: d.db.Collection(name)}
}

// Transact runs fn inside a mongo transaction. The driver retries fn on transient transaction errors.
func (d *DB) Transact(ctx context.Context, opts store.TxOpts, fn func(ctx context.Context, session store.Session) error) error {
	txOpts, err := transactionOptions(opts)
	if err != nil {
		return err
	}
	sess, err := d.client.StartSession()
	if err != nil {
		return errors.Wrap(err, errors.Internal, "failed to start session")
	}
	defer sess.EndSession(ctx)
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		s := &session{
			id:   ksuid.New().String(),
			sess: sess,
		}
		defer s.end()
		return nil, fn(sc, s)
	}, txOpts)
	return err
}

// Close disconnects the client
func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

func transactionOptions(opts store.TxOpts) (*options.TransactionOptions, error) {
	mode, err := readpref.ModeFromString(opts.ReadPreference)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid read preference")
	}
	rp, err := readpref.New(mode)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid read preference")
	}
	var rc *readconcern.ReadConcern
	switch opts.ReadConcern {
	case "local":
		rc = readconcern.Local()
	case "majority":
		rc = readconcern.Majority()
	case "snapshot":
		rc = readconcern.Snapshot()
	default:
		return nil, errors.New(errors.Validation, "unsupported read concern: %s", opts.ReadConcern)
	}
	var wc *writeconcern.WriteConcern
	switch opts.WriteConcern {
	case "majority":
		wc = writeconcern.Majority()
	case "1":
		wc = writeconcern.W1()
	default:
		return nil, errors.New(errors.Validation, "unsupported write concern: %s", opts.WriteConcern)
	}
	return options.Transaction().
		SetReadPreference(rp).
		SetReadConcern(rc).
		SetWriteConcern(wc), nil
}

type session struct {
	id    string
	sess  mongo.Session
	ended atomic.Bool
}

func (s *session) ID() string {
	return s.id
}

func (s *session) end() {
	s.ended.Store(true)
}
