package kvstore

import (
	"bytes"
	"encoding/json"
	"math/big"
	"reflect"
	"strings"

	"github.com/autom8ter/docrepo/store"
	"github.com/tidwall/gjson"
)

// decodeJSON decodes bits into v keeping numbers as json.Number so that integers beyond 2^53
// keep their exact value
func decodeJSON(bits []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(bits))
	dec.UseNumber()
	return dec.Decode(v)
}

// fieldValue returns the value at the document path and whether the path exists
func fieldValue(doc *store.Document, path string) (any, bool) {
	res := gjson.Get(doc.String(), path)
	switch {
	case !res.Exists():
		return nil, false
	case res.Type == gjson.Number:
		return json.Number(res.Raw), true
	case res.IsObject(), res.IsArray():
		var v any
		if err := decodeJSON([]byte(res.Raw), &v); err == nil {
			return v, true
		}
	}
	return res.Value(), true
}

func compareNumbers(a, b json.Number) int {
	ra, okA := new(big.Rat).SetString(string(a))
	rb, okB := new(big.Rat).SetString(string(b))
	if !okA || !okB {
		return strings.Compare(string(a), string(b))
	}
	return ra.Cmp(rb)
}

// valueEqual compares decoded json values. Numbers are equal when their values are, whatever
// their notation (1, 1.0 and 1e0 are equal).
func valueEqual(a, b any) bool {
	switch a := a.(type) {
	case json.Number:
		b, ok := b.(json.Number)
		return ok && compareNumbers(a, b) == 0
	case map[string]any:
		b, ok := b.(map[string]any)
		if !ok || len(a) != len(b) {
			return false
		}
		for k, v := range a {
			bv, ok := b[k]
			if !ok || !valueEqual(v, bv) {
				return false
			}
		}
		return true
	case []any:
		b, ok := b.([]any)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !valueEqual(a[i], b[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}
