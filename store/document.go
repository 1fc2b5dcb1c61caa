package store

import (
	"encoding/json"

	"github.com/autom8ter/docrepo/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Document is a JSON document
type Document struct {
	result gjson.Result
}

// UnmarshalJSON satisfies the json Unmarshaler interface
func (d *Document) UnmarshalJSON(bytes []byte) error {
	doc, err := NewDocumentFromBytes(bytes)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

// MarshalJSON satisfies the json Marshaler interface
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.Bytes(), nil
}

// NewDocument creates a new empty document
func NewDocument() *Document {
	return &Document{
		result: gjson.Parse("{}"),
	}
}

// NewDocumentFromBytes creates a new document from the given json bytes
func NewDocumentFromBytes(json []byte) (*Document, error) {
	if !gjson.ValidBytes(json) {
		return nil, errors.New(errors.Validation, "invalid json: %s", string(json))
	}
	d := &Document{
		result: gjson.ParseBytes(json),
	}
	if !d.result.IsObject() {
		return nil, errors.New(errors.Validation, "document must be a json object")
	}
	return d, nil
}

// NewDocumentFrom creates a new document from the given value - the value must be json compatible
func NewDocumentFrom(value any) (*Document, error) {
	bits, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to json encode value: %#v", value)
	}
	return NewDocumentFromBytes(bits)
}

// ID returns the document's primary key
func (d *Document) ID() string {
	return d.result.Get(IDKey).String()
}

// String returns the document as a json string
func (d *Document) String() string {
	return d.result.Raw
}

// Bytes returns the document as json bytes
func (d *Document) Bytes() []byte {
	return []byte(d.result.Raw)
}

// Value returns the document as a map
func (d *Document) Value() map[string]any {
	return cast.ToStringMap(d.result.Value())
}

// Clone allocates a new document with identical values
func (d *Document) Clone() *Document {
	return &Document{result: gjson.Parse(d.result.Raw)}
}

// Get gets a field on the document. Dot notation is supported.
func (d *Document) Get(field string) any {
	return d.result.Get(field).Value()
}

// GetString gets a string field value on the document
func (d *Document) GetString(field string) string {
	return d.result.Get(field).String()
}

// Exists reports whether the field is present on the document
func (d *Document) Exists(field string) bool {
	return d.result.Get(field).Exists()
}

// Set sets a field on the document. Dot notation is supported.
func (d *Document) Set(field string, val any) error {
	var (
		result string
		err    error
	)
	switch val := val.(type) {
	case gjson.Result:
		result, err = sjson.SetRaw(d.result.Raw, field, val.Raw)
	case json.RawMessage:
		result, err = sjson.SetRaw(d.result.Raw, field, string(val))
	default:
		result, err = sjson.Set(d.result.Raw, field, val)
	}
	if err != nil {
		return err
	}
	d.result = gjson.Parse(result)
	return nil
}

// Del deletes a field from the document
func (d *Document) Del(field string) error {
	result, err := sjson.Delete(d.result.Raw, field)
	if err != nil {
		return err
	}
	d.result = gjson.Parse(result)
	return nil
}

// Rename moves the value stored under from to the key to. A missing field is left missing.
func (d *Document) Rename(from, to string) error {
	if from == to {
		return nil
	}
	val := d.result.Get(from)
	if err := d.Del(from); err != nil {
		return err
	}
	if !val.Exists() {
		return d.Del(to)
	}
	return d.Set(to, val)
}

// Scan decodes the document into the value
func (d *Document) Scan(value any) error {
	return json.Unmarshal(d.Bytes(), value)
}

// Documents is an array of documents
type Documents []*Document

// Slice slices the documents into a subarray of documents
func (documents Documents) Slice(start, end int) Documents {
	return lo.Slice[*Document](documents, start, end)
}

// Filter applies the filter function against the documents
func (documents Documents) Filter(predicate func(document *Document, i int) bool) Documents {
	return lo.Filter[*Document](documents, predicate)
}

// IDs returns the primary keys of the documents
func (documents Documents) IDs() []string {
	return lo.Map(documents, func(d *Document, _ int) string {
		return d.ID()
	})
}
