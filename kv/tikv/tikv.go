package tikv

import (
	"context"
	"time"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/kv"
	"github.com/autom8ter/docrepo/kv/kvutil"
	"github.com/autom8ter/docrepo/kv/registry"
	"github.com/spf13/cast"
	"github.com/tikv/client-go/v2/txnkv"
)

func init() {
	registry.Register("tikv", func(params map[string]interface{}) (kv.DB, error) {
		if params["pd_addr"] == nil {
			return nil, errors.New(errors.Validation, "'pd_addr' is a required paramater")
		}
		return Open(cast.ToStringSlice(params["pd_addr"]))
	})
}

type tikvKV struct {
	db *txnkv.Client
}

// Open opens a tikv backed key value database against the given placement driver addresses
func Open(pdAddrs []string) (kv.DB, error) {
	if len(pdAddrs) == 0 {
		return nil, errors.New(errors.Validation, "empty pd address")
	}
	client, err := txnkv.NewClient(pdAddrs)
	if err != nil {
		return nil, err
	}
	return &tikvKV{
		db: client,
	}, nil
}

func (b *tikvKV) Tx(ctx context.Context, isUpdate bool, fn func(kv.Tx) error) error {
	txn, err := b.db.Begin()
	if err != nil {
		return err
	}
	tx := &tikvTx{txn: txn, readOnly: !isUpdate}
	if err := fn(tx); err != nil {
		_ = txn.Rollback()
		return err
	}
	if !isUpdate {
		return txn.Rollback()
	}
	return txn.Commit(ctx)
}

func (b *tikvKV) NewLocker(key []byte, leaseInterval time.Duration) (kv.Locker, error) {
	return kvutil.NewLocker(b, key, leaseInterval)
}

func (b *tikvKV) Close(ctx context.Context) error {
	return b.db.Close()
}
