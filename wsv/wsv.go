// Package wsv reads and writes single lines of Whitespace Separated Values.
//
// A line holds zero or more values separated by whitespace. A value is raw
// text, a double quoted string or the null placeholder "-". A '#' outside of
// a string starts a comment that runs to the end of the line.
//
// Inside a string, "" stands for a double quote and "/" for a line feed, so a
// serialized value never spans more than one line.
package wsv

import (
	"errors"
	"fmt"
	"strings"
)

// Null is the placeholder written for a null value.
const Null = "-"

var (
	errStringNotClosed    = errors.New("string not closed")
	errInvalidAfterString = errors.New("invalid character after string")
	errInvalidQuote       = errors.New("invalid double quote in value")
	errLineFeed           = errors.New("line feed in line")
)

// ParseError reports the position where a line failed to parse.
type ParseError struct {
	// Line is 1-based, 0 when the caller parsed a detached line.
	Line int
	// Column is the 1-based rune index in the line.
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("wsv: line %d, column %d: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("wsv: column %d: %v", e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// String returns a pointer to s, for building nullable values.
func String(s string) *string {
	return &s
}

// IsWhitespace reports whether r separates values.
func IsWhitespace(r rune) bool {
	switch r {
	case 0x09, 0x0B, 0x0C, 0x0D, 0x20, 0x85, 0xA0, 0x1680,
		0x2028, 0x2029, 0x202F, 0x205F, 0x3000:
		return true
	}
	return r >= 0x2000 && r <= 0x200A
}

// ParseLine splits a line into its values. A nil entry is a null value.
//
// A line without values (empty, blank or comment only) returns a nil slice.
func ParseLine(line string) ([]*string, error) {
	runes := []rune(line)
	var values []*string
	i := 0
	for {
		for i < len(runes) && IsWhitespace(runes[i]) {
			i++
		}
		if i >= len(runes) || runes[i] == '#' {
			return values, nil
		}
		switch runes[i] {
		case '\n':
			return nil, &ParseError{Column: i + 1, Err: errLineFeed}
		case '"':
			i++
			var sb strings.Builder
			for {
				if i >= len(runes) || runes[i] == '\n' {
					return nil, &ParseError{Column: i + 1, Err: errStringNotClosed}
				}
				c := runes[i]
				i++
				if c != '"' {
					sb.WriteRune(c)
					continue
				}
				if i < len(runes) && runes[i] == '"' {
					sb.WriteByte('"')
					i++
					continue
				}
				if i+1 < len(runes) && runes[i] == '/' && runes[i+1] == '"' {
					sb.WriteByte('\n')
					i += 2
					continue
				}
				break
			}
			if i < len(runes) && !IsWhitespace(runes[i]) && runes[i] != '#' {
				return nil, &ParseError{Column: i + 1, Err: errInvalidAfterString}
			}
			s := sb.String()
			values = append(values, &s)
		default:
			start := i
			for i < len(runes) && !IsWhitespace(runes[i]) && runes[i] != '#' {
				switch runes[i] {
				case '"':
					return nil, &ParseError{Column: i + 1, Err: errInvalidQuote}
				case '\n':
					return nil, &ParseError{Column: i + 1, Err: errLineFeed}
				}
				i++
			}
			s := string(runes[start:i])
			if s == Null {
				values = append(values, nil)
			} else {
				values = append(values, &s)
			}
		}
	}
}

// SerializeValue renders a single value, quoting it when needed.
func SerializeValue(v *string) string {
	if v == nil {
		return Null
	}
	s := *v
	switch {
	case s == "":
		return `""`
	case s == Null:
		return `"-"`
	case !needsQuotes(s):
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`""`)
		case '\n':
			sb.WriteString(`"/"`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// SerializeLine renders values separated by a single space.
func SerializeLine(values []*string) string {
	var sb strings.Builder
	for i, v := range values {
		if i != 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(SerializeValue(v))
	}
	return sb.String()
}

func needsQuotes(s string) bool {
	for _, r := range s {
		if r == '"' || r == '#' || r == '\n' || IsWhitespace(r) {
			return true
		}
	}
	return false
}
