// Whole-document parsing and rendering.

package sml

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/maruel/tbl/reliabletxt"
	"github.com/maruel/tbl/wsv"
)

var (
	errNoRoot          = errors.New("root element expected")
	errMultipleRoots   = errors.New("only one root element allowed")
	errUnexpectedEnd   = errors.New("end keyword without open element")
	errNotClosed       = errors.New("element not closed")
	errInvalidBetween  = errors.New("whitespace between values must be WSV whitespace")
	errInvalidIndent   = errors.New("indentation must be WSV whitespace")
	errEmptyEndKeyword = errors.New("end keyword must not be empty")
)

// Document is a parsed SML document.
type Document struct {
	Root *Element
	// EndKeyword closes elements; nil is written as "-".
	EndKeyword *string
	// Encoding is used when the document is saved.
	Encoding reliabletxt.Encoding
}

// NewDocument returns a UTF-8 document using the default end keyword.
func NewDocument(root *Element) *Document {
	kw := DefaultEndKeyword
	return &Document{Root: root, EndKeyword: &kw}
}

// Parse parses the text of a whole document.
func Parse(text string) (*Document, error) {
	lines := strings.Split(text, "\n")
	last := len(lines) - 1
	for last >= 0 && isEmptyLine(lines[last]) {
		last--
	}
	if last < 0 {
		return nil, &ParseError{Line: 1, Err: errNoRoot}
	}
	kw, err := endKeywordOf(lines[last], last+1)
	if err != nil {
		return nil, err
	}
	var root *Element
	var stack []*Element
	for i, text := range lines {
		kind, values, err := parseLine(text, i+1, kw)
		if err != nil {
			return nil, err
		}
		switch kind {
		case lineEmpty:
		case lineElementStart:
			e := &Element{Name: *values[0]}
			if len(stack) == 0 {
				if root != nil {
					return nil, &ParseError{Line: i + 1, Err: errMultipleRoots}
				}
				root = e
			} else {
				stack[len(stack)-1].Add(e)
			}
			stack = append(stack, e)
		case lineElementEnd:
			if len(stack) == 0 {
				return nil, &ParseError{Line: i + 1, Err: errUnexpectedEnd}
			}
			stack = stack[:len(stack)-1]
		case lineAttribute:
			if len(stack) == 0 {
				if root == nil {
					return nil, &ParseError{Line: i + 1, Err: errNoRoot}
				}
				return nil, &ParseError{Line: i + 1, Err: errMultipleRoots}
			}
			stack[len(stack)-1].Add(newAttribute(values))
		}
	}
	if root == nil {
		return nil, &ParseError{Line: 1, Err: errNoRoot}
	}
	if len(stack) != 0 {
		return nil, &ParseError{Line: len(lines), Err: fmt.Errorf("%w: %q", errNotClosed, stack[len(stack)-1].Name)}
	}
	return &Document{Root: root, EndKeyword: kw}, nil
}

// Options controls how a document is rendered.
type Options struct {
	// Indentation is repeated once per nesting level.
	Indentation string
	// Minify drops indentation and writes a null end keyword.
	Minify bool
	// Align pads the values of sibling attributes into columns.
	Align bool
	// WhitespaceBetween separates values, a single space when empty.
	WhitespaceBetween string
	// RightAligned selects, per column, right alignment when Align is set.
	RightAligned []bool
}

// String renders the document with one tab per nesting level.
func (d *Document) String() string {
	s, _ := d.Format(&Options{Indentation: "\t"})
	return s
}

// MinifiedString renders the document without indentation and with a null
// end keyword.
func (d *Document) MinifiedString() string {
	s, _ := d.Format(&Options{Minify: true})
	return s
}

// Format renders the document. Lines are separated, not terminated, by a
// line feed.
func (d *Document) Format(o *Options) (string, error) {
	r, err := newRenderer(o, d.EndKeyword)
	if err != nil {
		return "", err
	}
	r.element(d.Root, 0)
	return strings.TrimSuffix(r.sb.String(), "\n"), nil
}

// renderer writes nodes as lines, each terminated by a line feed.
type renderer struct {
	sb      strings.Builder
	indent  string
	end     string
	align   bool
	between string
	right   []bool
}

func newRenderer(o *Options, endKeyword *string) (*renderer, error) {
	if o == nil {
		o = &Options{Indentation: "\t"}
	}
	r := &renderer{indent: o.Indentation, align: o.Align, between: o.WhitespaceBetween, right: o.RightAligned}
	if !isWhitespace(r.indent) {
		return nil, errInvalidIndent
	}
	if r.between == "" {
		r.between = " "
	} else if !isWhitespace(r.between) {
		return nil, errInvalidBetween
	}
	if o.Minify {
		r.indent = ""
		endKeyword = nil
	}
	if endKeyword != nil && *endKeyword == "" {
		return nil, errEmptyEndKeyword
	}
	r.end = wsv.SerializeValue(endKeyword)
	return r, nil
}

func isWhitespace(s string) bool {
	for _, c := range s {
		if !wsv.IsWhitespace(c) {
			return false
		}
	}
	return true
}

func (r *renderer) node(n Node, depth int) {
	switch n := n.(type) {
	case *Element:
		r.element(n, depth)
	case *Attribute:
		r.line(depth, attributeValues(n), nil)
	}
}

func (r *renderer) element(e *Element, depth int) {
	r.line(depth, []string{wsv.SerializeValue(&e.Name)}, nil)
	var widths []int
	if r.align {
		widths = columnWidths(e.Attributes())
	}
	for _, n := range e.Nodes {
		if a, ok := n.(*Attribute); ok && widths != nil {
			r.line(depth+1, attributeValues(a), widths)
			continue
		}
		r.node(n, depth+1)
	}
	r.line(depth, []string{r.end}, nil)
}

func (r *renderer) line(depth int, values []string, widths []int) {
	for range depth {
		r.sb.WriteString(r.indent)
	}
	for i, v := range values {
		if i != 0 {
			r.sb.WriteString(r.between)
		}
		pad := 0
		if widths != nil {
			pad = widths[i] - utf8.RuneCountInString(v)
		}
		if i < len(r.right) && r.right[i] {
			r.sb.WriteString(strings.Repeat(" ", pad))
			r.sb.WriteString(v)
			continue
		}
		r.sb.WriteString(v)
		if i != len(values)-1 {
			r.sb.WriteString(strings.Repeat(" ", pad))
		}
	}
	r.sb.WriteByte('\n')
}

func attributeValues(a *Attribute) []string {
	out := make([]string, 0, len(a.Values)+1)
	out = append(out, wsv.SerializeValue(&a.Name))
	for _, v := range a.Values {
		out = append(out, wsv.SerializeValue(v))
	}
	return out
}

func columnWidths(attrs []*Attribute) []int {
	var widths []int
	for _, a := range attrs {
		for i, v := range attributeValues(a) {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], utf8.RuneCountInString(v))
		}
	}
	return widths
}
