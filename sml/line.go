package sml

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maruel/tbl/wsv"
)

// DefaultEndKeyword closes elements unless a document says otherwise.
const DefaultEndKeyword = "End"

var errInvalidEndLine = errors.New("last non-empty line must hold exactly one value, the end keyword")

// ParseError reports the line a document failed to parse at.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sml: line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type lineKind int

const (
	lineEmpty lineKind = iota
	lineElementStart
	lineElementEnd
	lineAttribute
)

// parseLine parses and classifies one line of a document.
func parseLine(text string, lineNo int, endKeyword *string) (lineKind, []*string, error) {
	values, err := wsv.ParseLine(text)
	if err != nil {
		var perr *wsv.ParseError
		if errors.As(err, &perr) {
			c := *perr
			c.Line = lineNo
			return 0, nil, &c
		}
		return 0, nil, &ParseError{Line: lineNo, Err: err}
	}
	switch {
	case len(values) == 0:
		return lineEmpty, nil, nil
	case len(values) == 1:
		if isEndKeyword(values[0], endKeyword) {
			return lineElementEnd, values, nil
		}
		if values[0] == nil {
			return 0, nil, &ParseError{Line: lineNo, Err: errNullElementName}
		}
		return lineElementStart, values, nil
	default:
		if values[0] == nil {
			return 0, nil, &ParseError{Line: lineNo, Err: errNullAttributeName}
		}
		return lineAttribute, values, nil
	}
}

func isEndKeyword(v, endKeyword *string) bool {
	if endKeyword == nil || v == nil {
		return v == endKeyword
	}
	return strings.EqualFold(*v, *endKeyword)
}

// endKeywordOf extracts the end keyword from the last non-empty line.
func endKeywordOf(text string, lineNo int) (*string, error) {
	values, err := wsv.ParseLine(text)
	if err != nil {
		return nil, &ParseError{Line: lineNo, Err: err}
	}
	if len(values) != 1 {
		return nil, &ParseError{Line: lineNo, Err: errInvalidEndLine}
	}
	return values[0], nil
}

// isEmptyLine reports whether a line holds no value. Lines that fail to parse
// are not empty so that the error surfaces when they are read.
func isEmptyLine(text string) bool {
	values, err := wsv.ParseLine(text)
	return err == nil && len(values) == 0
}

func newAttribute(values []*string) *Attribute {
	return &Attribute{Name: *values[0], Values: values[1:]}
}
