package kvstore

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/autom8ter/docrepo/store"
	"github.com/autom8ter/docrepo/util"
)

// typeRank orders values of different json types: null < numbers < strings < objects < arrays < booleans
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case json.Number:
		return 1
	case string:
		return 2
	case map[string]any:
		return 3
	case []any:
		return 4
	case bool:
		return 5
	default:
		return 6
	}
}

func compare(a, b any) int {
	if ra, rb := typeRank(a), typeRank(b); ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch a := a.(type) {
	case nil:
		return 0
	case json.Number:
		return compareNumbers(a, b.(json.Number))
	case string:
		return strings.Compare(a, b.(string))
	case bool:
		b := b.(bool)
		switch {
		case a == b:
			return 0
		case !a:
			return -1
		}
		return 1
	default:
		return strings.Compare(util.JSONString(a), util.JSONString(b))
	}
}

// sortDocuments stably sorts the documents by the sort fields in order
func sortDocuments(docs store.Documents, fields []store.SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			a, _ := fieldValue(docs[i], f.Field)
			b, _ := fieldValue(docs[j], f.Field)
			c := compare(a, b)
			if c == 0 {
				continue
			}
			if f.Asc {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}
