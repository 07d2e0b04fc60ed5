package tbl

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Kind classifies errors raised by this package. Errors coming from the node
// streams or the file system are returned wrapped, never as an *Error.
type Kind int

const (
	// KindFormat is a structural violation of the table layout.
	KindFormat Kind = iota + 1
	// KindUsage is an operation called on a session that does not support it.
	KindUsage
)

func (k Kind) String() string {
	switch k {
	case KindFormat:
		return "format"
	case KindUsage:
		return "usage"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a classified table error with optional details.
//
// The package level Err values are templates: errors returned by this package
// are copies carrying details, and match their template with errors.Is.
type Error struct {
	Kind    Kind
	Message string

	details map[string]any
	err     error
}

// Structural errors.
var (
	ErrNotTable            = &Error{Kind: KindFormat, Message: "not a valid table document"}
	ErrMetaExpected        = &Error{Kind: KindFormat, Message: "meta element expected"}
	ErrInvalidMeta         = &Error{Kind: KindFormat, Message: "invalid meta element"}
	ErrColumnsExpected     = &Error{Kind: KindFormat, Message: "column names attribute expected"}
	ErrNullColumnName      = &Error{Kind: KindFormat, Message: "column name cannot be null"}
	ErrTooFewColumns       = &Error{Kind: KindFormat, Message: "table must have at least two columns"}
	ErrAttributeExpected   = &Error{Kind: KindFormat, Message: "attribute expected"}
	ErrTooManyValues       = &Error{Kind: KindFormat, Message: "row has more values than there are columns"}
	ErrTooFewValues        = &Error{Kind: KindFormat, Message: "row must have at least two values"}
	ErrNullFirstValue      = &Error{Kind: KindFormat, Message: "first row value cannot be null"}
	ErrColumnCountMismatch = &Error{Kind: KindFormat, Message: "column count mismatch"}
)

// ErrNotAppending is returned by AppendReader for a writer that did not
// resume an existing document.
var ErrNotAppending = &Error{Kind: KindUsage, Message: "writer was not opened on an existing document"}

// WithDetail returns a copy of the error with an added detail.
func (e *Error) WithDetail(key string, value any) *Error {
	c := *e
	c.details = maps.Clone(e.details)
	if c.details == nil {
		c.details = make(map[string]any)
	}
	c.details[key] = value
	return &c
}

// Wrap returns a copy of the error wrapping err.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.err = err
	return &c
}

// Details returns the details attached to the error.
func (e *Error) Details() map[string]any {
	return e.details
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("tbl: ")
	b.WriteString(e.Message)
	if len(e.details) != 0 {
		b.WriteString(" (")
		for i, k := range slices.Sorted(maps.Keys(e.details)) {
			if i != 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%s=%v", k, e.details[k])
		}
		b.WriteByte(')')
	}
	if e.err != nil {
		b.WriteString(": ")
		b.WriteString(e.err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.err
}

// Is matches errors derived from the same template.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == e.Message
}

// LogAttrs returns the details as alternating keys and values, sorted by key,
// for use with slog.
func (e *Error) LogAttrs() []any {
	out := make([]any, 0, 2*len(e.details)+2)
	out = append(out, "kind", e.Kind.String())
	for _, k := range slices.Sorted(maps.Keys(e.details)) {
		out = append(out, k, e.details[k])
	}
	return out
}
