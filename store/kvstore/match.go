package kvstore

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/predicate"
	"github.com/spf13/cast"
)

// matcher evaluates a filter document against decoded json documents
type matcher struct {
	filter  map[string]any
	regexes map[string]*regexp.Regexp
}

// newMatcher normalizes the filter to the shape of decoded json (json.Number numbers, []any arrays)
func newMatcher(filter predicate.M) (*matcher, error) {
	bits, err := json.Marshal(filter)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid filter")
	}
	m := &matcher{regexes: map[string]*regexp.Regexp{}}
	if err := decodeJSON(bits, &m.filter); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid filter")
	}
	return m, nil
}

func (m *matcher) match(doc map[string]any) (bool, error) {
	return m.matchDoc(doc, m.filter)
}

func (m *matcher) matchDoc(doc map[string]any, filter map[string]any) (bool, error) {
	for key, cond := range filter {
		var (
			ok  bool
			err error
		)
		switch key {
		case "$and", "$or", "$nor":
			ok, err = m.matchCombinator(doc, key, cond)
		default:
			if strings.HasPrefix(key, "$") {
				return false, errors.New(errors.Validation, "unsupported operator: %s", key)
			}
			ok, err = m.matchField(resolve(doc, strings.Split(key, ".")), cond)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (m *matcher) matchCombinator(doc map[string]any, op string, cond any) (bool, error) {
	children, ok := cond.([]any)
	if !ok {
		return false, errors.New(errors.Validation, "%s expects an array", op)
	}
	for _, child := range children {
		filter, ok := child.(map[string]any)
		if !ok {
			return false, errors.New(errors.Validation, "%s expects an array of documents", op)
		}
		matched, err := m.matchDoc(doc, filter)
		if err != nil {
			return false, err
		}
		switch {
		case op == "$and" && !matched:
			return false, nil
		case op == "$or" && matched:
			return true, nil
		case op == "$nor" && matched:
			return false, nil
		}
	}
	return op != "$or", nil
}

func isOperatorDoc(cond any) (map[string]any, bool) {
	ops, ok := cond.(map[string]any)
	if !ok || len(ops) == 0 {
		return nil, false
	}
	for k := range ops {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return ops, true
}

// matchField evaluates a field condition against the values found at the field's path
func (m *matcher) matchField(values []any, cond any) (bool, error) {
	ops, ok := isOperatorDoc(cond)
	if !ok {
		return equals(values, cond), nil
	}
	for op, operand := range ops {
		matched, err := m.matchOp(values, op, operand)
		if err != nil || !matched {
			return false, err
		}
	}
	return true, nil
}

func (m *matcher) matchOp(values []any, op string, operand any) (bool, error) {
	switch op {
	case "$eq":
		return equals(values, operand), nil
	case "$ne":
		return !equals(values, operand), nil
	case "$exists":
		return (len(values) > 0) == cast.ToBool(operand), nil
	case "$in", "$nin":
		list, ok := operand.([]any)
		if !ok {
			return false, errors.New(errors.Validation, "%s expects an array", op)
		}
		found := false
		for _, v := range list {
			if equals(values, v) {
				found = true
				break
			}
		}
		return found == (op == "$in"), nil
	case "$regex":
		re, err := m.regex(operand)
		if err != nil {
			return false, err
		}
		for _, v := range expand(values) {
			if s, ok := v.(string); ok && re.MatchString(s) {
				return true, nil
			}
		}
		return false, nil
	case "$gt", "$gte", "$lt", "$lte":
		for _, v := range expand(values) {
			if typeRank(v) != typeRank(operand) {
				continue
			}
			c := compare(v, operand)
			if (op == "$gt" && c > 0) || (op == "$gte" && c >= 0) || (op == "$lt" && c < 0) || (op == "$lte" && c <= 0) {
				return true, nil
			}
		}
		return false, nil
	case "$not":
		ops, ok := isOperatorDoc(operand)
		if !ok {
			return false, errors.New(errors.Validation, "$not expects an operator document")
		}
		matched, err := m.matchField(values, ops)
		return !matched, err
	default:
		return false, errors.New(errors.Validation, "unsupported operator: %s", op)
	}
}

func (m *matcher) regex(operand any) (*regexp.Regexp, error) {
	pattern, ok := operand.(string)
	if !ok {
		return nil, errors.New(errors.Validation, "$regex expects a string")
	}
	if re, ok := m.regexes[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(err, errors.Validation, "invalid regex: %s", pattern)
	}
	m.regexes[pattern] = re
	return re, nil
}

// equals reports whether any value, or any element of an array value, equals operand. A null
// operand also matches a missing field.
func equals(values []any, operand any) bool {
	if operand == nil && len(values) == 0 {
		return true
	}
	for _, v := range expand(values) {
		if valueEqual(v, operand) {
			return true
		}
	}
	return false
}

// expand returns the values followed by the elements of array values
func expand(values []any) []any {
	expanded := append([]any(nil), values...)
	for _, v := range values {
		if arr, ok := v.([]any); ok {
			expanded = append(expanded, arr...)
		}
	}
	return expanded
}

// resolve returns the values found at path. Arrays are traversed element-wise unless the path
// segment is a numeric index.
func resolve(value any, path []string) []any {
	if len(path) == 0 {
		return []any{value}
	}
	switch v := value.(type) {
	case map[string]any:
		next, ok := v[path[0]]
		if !ok {
			return nil
		}
		return resolve(next, path[1:])
	case []any:
		if i, err := strconv.Atoi(path[0]); err == nil {
			if i < 0 || i >= len(v) {
				return nil
			}
			return resolve(v[i], path[1:])
		}
		var values []any
		for _, element := range v {
			if _, ok := element.(map[string]any); ok {
				values = append(values, resolve(element, path)...)
			}
		}
		return values
	default:
		return nil
	}
}
