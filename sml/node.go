// Package sml reads and writes Simple Markup Language documents: a tree of
// named elements holding attributes (a name followed by one or more nullable
// string values) and nested elements. Each line is a WSV line.
//
//	Table
//		Column1 Column2
//		Value11 -
//	End
//
// A line with a single value opens an element, unless the value matches the
// end keyword of the document (case-insensitive), in which case it closes the
// innermost open element. The end keyword is whatever the last non-empty line
// of the document holds; a null end keyword is written as "-".
package sml

import (
	"errors"
	"strings"
)

var (
	errNullElementName   = errors.New("null value as element name is not allowed")
	errNullAttributeName = errors.New("null value as attribute name is not allowed")
	errNoAttributeValue  = errors.New("attribute must have at least one value")
)

// Node is either an *Element or an *Attribute.
type Node interface {
	// NodeName returns the name of the element or attribute.
	NodeName() string

	node()
}

// Element is a named container of nodes.
type Element struct {
	Name  string
	Nodes []Node
}

// NewElement returns an element with the given children.
func NewElement(name string, nodes ...Node) *Element {
	return &Element{Name: name, Nodes: nodes}
}

// NodeName implements Node.
func (e *Element) NodeName() string {
	return e.Name
}

func (e *Element) node() {}

// HasName compares names the way SML does, ignoring case.
func (e *Element) HasName(name string) bool {
	return strings.EqualFold(e.Name, name)
}

// Add appends child nodes.
func (e *Element) Add(nodes ...Node) {
	e.Nodes = append(e.Nodes, nodes...)
}

// Attributes returns the attribute children, in order.
func (e *Element) Attributes() []*Attribute {
	var out []*Attribute
	for _, n := range e.Nodes {
		if a, ok := n.(*Attribute); ok {
			out = append(out, a)
		}
	}
	return out
}

// Elements returns the element children, in order.
func (e *Element) Elements() []*Element {
	var out []*Element
	for _, n := range e.Nodes {
		if c, ok := n.(*Element); ok {
			out = append(out, c)
		}
	}
	return out
}

// Attribute is a name followed by at least one nullable value.
type Attribute struct {
	Name   string
	Values []*string
}

// NewAttribute returns an attribute. Nil values are nulls.
func NewAttribute(name string, values ...*string) *Attribute {
	return &Attribute{Name: name, Values: values}
}

// NodeName implements Node.
func (a *Attribute) NodeName() string {
	return a.Name
}

func (a *Attribute) node() {}

// HasName compares names the way SML does, ignoring case.
func (a *Attribute) HasName(name string) bool {
	return strings.EqualFold(a.Name, name)
}

// Validate checks that the attribute can be written.
func (a *Attribute) Validate() error {
	if len(a.Values) == 0 {
		return errNoAttributeValue
	}
	return nil
}
