package tikv

import (
	"bytes"

	"github.com/autom8ter/docrepo/kv"
)

type unionStoreIterator interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Next() error
	Close()
}

type tikvIterator struct {
	opts kv.IterOpts
	iter unionStoreIterator
}

func (b *tikvIterator) Close() {
	b.iter.Close()
}

func (b *tikvIterator) Valid() bool {
	if !b.iter.Valid() {
		return false
	}
	return b.opts.Prefix == nil || bytes.HasPrefix(b.iter.Key(), b.opts.Prefix)
}

func (b *tikvIterator) Key() []byte {
	return b.iter.Key()
}

func (b *tikvIterator) Value() ([]byte, error) {
	return b.iter.Value(), nil
}

func (b *tikvIterator) Next() error {
	return b.iter.Next()
}
