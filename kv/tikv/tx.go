package tikv

import (
	"context"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/kv"
	"github.com/autom8ter/docrepo/kv/kvutil"
	tikvErr "github.com/tikv/client-go/v2/error"
	"github.com/tikv/client-go/v2/txnkv/transaction"
)

type tikvTx struct {
	txn      *transaction.KVTxn
	readOnly bool
}

func (t *tikvTx) NewIterator(kopts kv.IterOpts) (kv.Iterator, error) {
	var upperBound []byte
	if len(kopts.Prefix) > 0 {
		upperBound = kvutil.NextPrefix(kopts.Prefix)
	}
	iter, err := t.txn.Iter(kopts.Prefix, upperBound)
	if err != nil {
		return nil, err
	}
	return &tikvIterator{iter: iter, opts: kopts}, nil
}

func (t *tikvTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	val, err := t.txn.Get(ctx, key)
	if err != nil {
		if tikvErr.IsErrNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (t *tikvTx) Set(ctx context.Context, key, value []byte) error {
	if t.readOnly {
		return errors.New(errors.Forbidden, "writes forbidden in read-only transaction")
	}
	return t.txn.Set(key, value)
}

func (t *tikvTx) Delete(ctx context.Context, key []byte) error {
	if t.readOnly {
		return errors.New(errors.Forbidden, "writes forbidden in read-only transaction")
	}
	return t.txn.Delete(key)
}
