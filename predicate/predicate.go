package predicate

// IDKey is the reserved primary key of every stored document
const IDKey = "_id"

// M is a rendered filter document
type M map[string]any

// Op is a leaf comparison operator
type Op string

const (
	OpEq       Op = "eq"
	OpNull     Op = "null"
	OpExists   Op = "exists"
	OpRegex    Op = "regex"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIncludes Op = "includes"
	OpIn       Op = "in"
)

type kind int

const (
	kindAll kind = iota
	kindNone
	kindLeaf
	kindAnd
	kindOr
)

// Predicate is an immutable filter tree. The zero value matches every document.
type Predicate struct {
	kind     kind
	path     string
	op       Op
	operand  any
	negated  bool
	children []Predicate
}

// Empty matches every document
func Empty() Predicate {
	return Predicate{kind: kindAll}
}

func leaf(path string, op Op, operand any) Predicate {
	return Predicate{kind: kindLeaf, path: path, op: op, operand: operand}
}

// Eq matches documents whose field equals value
func Eq[T any](field Field[T], value T) Predicate {
	return leaf(field.path, OpEq, value)
}

// Neq matches documents whose field does not equal value
func Neq[T any](field Field[T], value T) Predicate {
	return Not(Eq(field, value))
}

// IsNull matches documents whose field is null or missing
func IsNull[T any](field Field[T]) Predicate {
	return leaf(field.path, OpNull, nil)
}

// Exists matches documents that carry the field
func Exists[T any](field Field[T]) Predicate {
	return leaf(field.path, OpExists, true)
}

// NotExists matches documents that do not carry the field
func NotExists[T any](field Field[T]) Predicate {
	return Not(Exists(field))
}

// Regex matches documents whose field matches the regular expression pattern
func Regex(field Field[string], pattern string) Predicate {
	return leaf(field.path, OpRegex, pattern)
}

// Gt matches documents whose field is greater than value
func Gt[T any](field Field[T], value T) Predicate {
	return leaf(field.path, OpGt, value)
}

// Gte matches documents whose field is greater than or equal to value
func Gte[T any](field Field[T], value T) Predicate {
	return leaf(field.path, OpGte, value)
}

// Lt matches documents whose field is less than value
func Lt[T any](field Field[T], value T) Predicate {
	return leaf(field.path, OpLt, value)
}

// Lte matches documents whose field is less than or equal to value
func Lte[T any](field Field[T], value T) Predicate {
	return leaf(field.path, OpLte, value)
}

// Includes matches documents whose array field contains element
func Includes[E any](field Field[[]E], element E) Predicate {
	return leaf(field.path, OpIncludes, element)
}

// In matches documents whose field equals one of values
func In[T any](field Field[T], values ...T) Predicate {
	operand := make([]any, 0, len(values))
	for _, v := range values {
		operand = append(operand, v)
	}
	return leaf(field.path, OpIn, operand)
}

// And matches documents that match every predicate. And() matches everything.
func And(predicates ...Predicate) Predicate {
	if len(predicates) == 0 {
		return Empty()
	}
	return Predicate{kind: kindAnd, children: clone(predicates)}
}

// Or matches documents that match at least one predicate. Or() matches nothing.
func Or(predicates ...Predicate) Predicate {
	if len(predicates) == 0 {
		return Predicate{kind: kindNone}
	}
	return Predicate{kind: kindOr, children: clone(predicates)}
}

// Not negates the predicate. Leaves are negated exactly and combinators follow De Morgan's laws,
// so Not(Not(p)) renders the same as p.
func Not(p Predicate) Predicate {
	switch p.kind {
	case kindAll:
		return Predicate{kind: kindNone}
	case kindNone:
		return Empty()
	case kindAnd:
		return Predicate{kind: kindOr, children: negateAll(p.children)}
	case kindOr:
		return Predicate{kind: kindAnd, children: negateAll(p.children)}
	default:
		p.negated = !p.negated
		return p
	}
}

// IsEmpty reports whether the predicate matches every document without constraint
func (p Predicate) IsEmpty() bool {
	return p.kind == kindAll
}

func negateAll(predicates []Predicate) []Predicate {
	negated := make([]Predicate, 0, len(predicates))
	for _, p := range predicates {
		negated = append(negated, Not(p))
	}
	return negated
}

func clone(predicates []Predicate) []Predicate {
	return append([]Predicate(nil), predicates...)
}
