package badger

import (
	"context"

	"github.com/autom8ter/docrepo/kv"
	"github.com/dgraph-io/badger/v3"
)

type badgerTx struct {
	txn *badger.Txn
}

func (b *badgerTx) NewIterator(kopts kv.IterOpts) (kv.Iterator, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.PrefetchSize = 10
	opts.Prefix = kopts.Prefix
	iter := b.txn.NewIterator(opts)
	iter.Rewind()
	return &badgerIterator{iter: iter, opts: kopts}, nil
}

func (b *badgerTx) Get(ctx context.Context, key []byte) ([]byte, error) {
	i, err := b.txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	return i.ValueCopy(nil)
}

func (b *badgerTx) Set(ctx context.Context, key, value []byte) error {
	return b.txn.SetEntry(badger.NewEntry(key, value))
}

func (b *badgerTx) Delete(ctx context.Context, key []byte) error {
	return b.txn.Delete(key)
}
