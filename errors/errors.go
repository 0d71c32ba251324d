package errors

import (
	// Go Internal Packages
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error so callers can react without matching on text.
type Kind uint8

const (
	Other Kind = iota
	Invalid
	NotFound
	AlreadyPaid
	AmountMismatch
	Expired
	Conflict
	Unauthorized
	Forbidden
	Config
	Upstream
	Unavailable
	Internal
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NotFound:
		return "not found"
	case AlreadyPaid:
		return "already paid"
	case AmountMismatch:
		return "amount mismatch"
	case Expired:
		return "expired"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Config:
		return "configuration error"
	case Upstream:
		return "upstream error"
	case Unavailable:
		return "upstream unavailable"
	case Internal:
		return "internal error"
	}
	return "other error"
}

// Error is the error type returned across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// E builds an *Error. err may be nil.
func E(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// kinder is implemented by errors of other packages that carry a Kind.
type kinder interface {
	ErrKind() Kind
}

// KindOf returns the first explicit Kind found in the chain of err.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind != Other {
			return e.Kind
		}
		if k, ok := err.(kinder); ok {
			return k.ErrKind()
		}
		err = stderrors.Unwrap(err)
	}
	return Other
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As is errors.As, re-exported so callers importing this package need not
// alias the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// New is errors.New.
func New(text string) error {
	return stderrors.New(text)
}

// ValidationErrors collects field level problems.
type ValidationErrors struct {
	fields map[string][]string
}

func ValidationErrs() *ValidationErrors {
	return &ValidationErrors{fields: make(map[string][]string)}
}

// Add records a problem with field.
func (v *ValidationErrors) Add(field, msg string) {
	v.fields[field] = append(v.fields[field], msg)
}

// Fields returns the recorded problems keyed by field.
func (v *ValidationErrors) Fields() map[string][]string {
	return v.fields
}

// Err returns nil when nothing was recorded.
func (v *ValidationErrors) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationErrors) Error() string {
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v.fields[k], ", ")))
	}
	return strings.Join(parts, "; ")
}
