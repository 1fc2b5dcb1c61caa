package docrepo

import (
	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/store"
	"github.com/segmentio/ksuid"
)

// identity maps between a record's identity field and the reserved _id key
type identity struct {
	field string
}

// toStorage encodes the record and moves its identity field to _id
func (i identity) toStorage(record any) (*store.Document, error) {
	doc, err := store.NewDocumentFrom(record)
	if err != nil {
		return nil, err
	}
	if err := doc.Rename(i.field, store.IDKey); err != nil {
		return nil, errors.Wrap(err, errors.Internal, "failed to map identity field %s", i.field)
	}
	return doc, nil
}

// fromStorage moves _id back to the identity field and decodes the document into record
func (i identity) fromStorage(doc *store.Document, record any) error {
	doc = doc.Clone()
	if err := doc.Rename(store.IDKey, i.field); err != nil {
		return errors.Wrap(err, errors.Internal, "failed to map identity field %s", i.field)
	}
	if err := doc.Scan(record); err != nil {
		return errors.Wrap(err, errors.Internal, "failed to decode document %s", doc.GetString(i.field))
	}
	return nil
}

// assignID gives the document a new time-ordered identity if it has none
func assignID(doc *store.Document) error {
	if doc.ID() != "" {
		return nil
	}
	return doc.Set(store.IDKey, ksuid.New().String())
}
