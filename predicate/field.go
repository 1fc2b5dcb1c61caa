package predicate

import (
	"strconv"
	"strings"
)

// Ref is anything that names a document path
type Ref interface {
	Path() string
}

// Field is a typed reference to a document field. The type parameter is the Go type of the field's
// value so that operators only accept operands of the same type.
type Field[T any] struct {
	path string
}

// F references a top level field by its json name
func F[T any](name string) Field[T] {
	return Field[T]{path: name}
}

// Prop references a field nested inside a struct-typed parent
func Prop[T, P any](parent Field[P], name string) Field[T] {
	return Field[T]{path: join(parent.path, name)}
}

// ArrayProp references a field of the elements of an array-typed parent
func ArrayProp[T, E any](parent Field[[]E], name string) Field[T] {
	return Field[T]{path: join(parent.path, name)}
}

// At references one element of an array-typed parent
func At[E any](parent Field[[]E], index int) Field[E] {
	return Field[E]{path: join(parent.path, strconv.Itoa(index))}
}

// Path returns the dot-joined path of the field
func (f Field[T]) Path() string {
	return f.path
}

// ResolvePath rewrites a path that names the identity field to the reserved primary key
func ResolvePath(path string, idField string) string {
	if idField != "" && path == idField {
		return IDKey
	}
	return path
}

func join(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ".")
}
