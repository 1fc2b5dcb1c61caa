package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an Error
type Code int

const (
	Internal   Code = http.StatusInternalServerError
	NotFound   Code = http.StatusNotFound
	Forbidden  Code = http.StatusForbidden
	Validation Code = http.StatusBadRequest
	Conflict   Code = http.StatusConflict
	// Configuration is returned when a collection is used without a registered identity mapping
	Configuration Code = http.StatusPreconditionFailed
	// UnrepairedMigration is returned when the migration ledger holds a record that did not succeed
	UnrepairedMigration Code = http.StatusLocked
	// MigrationFailure is returned when a migration body fails
	MigrationFailure Code = http.StatusFailedDependency
)

// Error is a custom error
type Error struct {
	Code     Code     `json:"code"`
	Messages []string `json:"messages"`
	Err      error    `json:"err,omitempty"`
}

// Error returns the Error as a json string
func (e *Error) Error() string {
	code := e.Code
	if code == 0 {
		code = Internal
	}
	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}
	bits, _ := json.Marshal(struct {
		Code     Code     `json:"code"`
		Messages []string `json:"messages"`
		Err      string   `json:"err,omitempty"`
	}{
		Code:     code,
		Messages: e.Messages,
		Err:      cause,
	})
	return string(bits)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// RemoveError removes the error from the Error and leaves it's messages and code
func (e *Error) RemoveError() *Error {
	return &Error{
		Code:     e.Code,
		Messages: e.Messages,
		Err:      nil,
	}
}

// New creates a new error with the given code and message
func New(code Code, msg string, args ...any) error {
	return &Error{
		Code:     code,
		Messages: []string{fmt.Sprintf(msg, args...)},
	}
}

// Extract extracts the custom Error from the given error
func Extract(err error) *Error {
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return &Error{
		Code:     0,
		Messages: nil,
		Err:      err,
	}
}

// Is reports whether any Error in err's chain carries the given code
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok && e.Code == code {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if Is(e, code) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return Is(x.Unwrap(), code)
	}
	return false
}

// Wrap wraps the given error and returns a new one. A nil error stays nil.
func Wrap(err error, code Code, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if ok && (code == 0 || code == e.Code) {
		if msg != "" {
			e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
		}
		return e
	}
	if code == 0 {
		code = Internal
	}
	e = &Error{
		Code: code,
		Err:  err,
	}
	if msg != "" {
		e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
	}
	return e
}
