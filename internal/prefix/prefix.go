package prefix

import (
	"bytes"
	"encoding/binary"

	"github.com/autom8ter/docrepo/util"
)

const sep = "/"

// Keys lays out one collection's documents, index entries and catalog entry in a kv keyspace
type Keys struct {
	collection string
}

// New returns the key layout of the collection
func New(collection string) Keys {
	return Keys{collection: collection}
}

// Catalogs is the prefix of every collection's catalog entry
func Catalogs() []byte {
	return []byte("catalog" + sep)
}

// Locks is the prefix of lock keys
func Locks() []byte {
	return []byte("locks" + sep)
}

// Collection returns the collection name
func (k Keys) Collection() string {
	return k.collection
}

// Catalog is the key holding the collection's index declarations
func (k Keys) Catalog() []byte {
	return append(Catalogs(), k.collection...)
}

// Documents is the prefix of every document in the collection
func (k Keys) Documents() []byte {
	return []byte("docs" + sep + k.collection + sep)
}

// Document is the key of one document
func (k Keys) Document(id string) []byte {
	return append(k.Documents(), id...)
}

// DocumentID returns the id encoded in a document key
func (k Keys) DocumentID(key []byte) string {
	return string(bytes.TrimPrefix(key, k.Documents()))
}

// Index is the prefix of every entry of the named index
func (k Keys) Index(name string) []byte {
	return []byte("index" + sep + k.collection + sep + name + sep)
}

// IndexEntry is the key of the index entry for the given field values. Each value is length
// prefixed so that entries of different value tuples never collide.
func (k Keys) IndexEntry(name string, values []any) []byte {
	key := k.Index(name)
	for _, v := range values {
		encoded := util.EncodeIndexValue(v)
		key = binary.AppendUvarint(key, uint64(len(encoded)))
		key = append(key, encoded...)
	}
	return key
}
