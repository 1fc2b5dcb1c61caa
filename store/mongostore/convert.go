package mongostore

import (
	"bytes"
	"encoding/json"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/predicate"
	"github.com/autom8ter/docrepo/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// toFilter normalizes a filter through json so that operands are encoded by their json tags.
// Integral numbers become int64 so that values beyond 2^53 keep their exact value.
func toFilter(filter predicate.M) (map[string]any, error) {
	if len(filter) == 0 {
		return map[string]any{}, nil
	}
	bits, err := json.Marshal(filter)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid filter")
	}
	dec := json.NewDecoder(bytes.NewReader(bits))
	dec.UseNumber()
	var normalized map[string]any
	if err := dec.Decode(&normalized); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid filter")
	}
	return fromNumbers(normalized).(map[string]any), nil
}

func fromNumbers(value any) any {
	switch value := value.(type) {
	case map[string]any:
		for k, v := range value {
			value[k] = fromNumbers(v)
		}
		return value
	case []any:
		for i, v := range value {
			value[i] = fromNumbers(v)
		}
		return value
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return i
		}
		f, _ := value.Float64()
		return f
	default:
		return value
	}
}

// toDocument converts a document to bson in relaxed extended json mode: integers are stored as
// int32 or int64 and only fractional numbers as doubles
func toDocument(doc *store.Document) (bson.D, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(doc.Bytes(), false, &d); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to convert document %s to bson", doc.ID())
	}
	return d, nil
}

// fromBSON converts decoded bson values to their plain json equivalents
func fromBSON(value any) any {
	switch value := value.(type) {
	case bson.M:
		out := make(map[string]any, len(value))
		for k, v := range value {
			out[k] = fromBSON(v)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(value))
		for _, e := range value {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, 0, len(value))
		for _, v := range value {
			out = append(out, fromBSON(v))
		}
		return out
	case primitive.ObjectID:
		return value.Hex()
	case primitive.DateTime:
		return value.Time().UTC()
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return value
	}
}
