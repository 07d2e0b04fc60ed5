package tbl

import (
	"slices"
	"strings"

	"github.com/maruel/tbl/sml"
	"github.com/maruel/tbl/wsv"
)

const metaName = "Meta"

// Meta holds the document level annotations of a table.
//
// Empty fields are not written. Attributes with other names are kept in
// Extra, in document order.
type Meta struct {
	Title       string
	Description string
	Authors     []string
	Tags        []string
	Language    string
	Version     string
	License     string
	Source      string
	Extra       []*sml.Attribute
}

// HasAny reports whether the meta block holds anything to write.
func (m *Meta) HasAny() bool {
	if m == nil {
		return false
	}
	return m.Title != "" || m.Description != "" || len(m.Authors) != 0 || len(m.Tags) != 0 ||
		m.Language != "" || m.Version != "" || m.License != "" || m.Source != "" || len(m.Extra) != 0
}

// Clone returns a deep copy.
func (m *Meta) Clone() *Meta {
	if m == nil {
		return &Meta{}
	}
	c := *m
	c.Authors = slices.Clone(m.Authors)
	c.Tags = slices.Clone(m.Tags)
	c.Extra = make([]*sml.Attribute, 0, len(m.Extra))
	for _, a := range m.Extra {
		c.Extra = append(c.Extra, sml.NewAttribute(a.Name, cloneValues(a.Values)...))
	}
	if len(c.Extra) == 0 {
		c.Extra = nil
	}
	return &c
}

// metaField binds an attribute name to a field of Meta.
type metaField struct {
	name   string
	single *string
	multi  *[]string
}

func (m *Meta) fields() []metaField {
	return []metaField{
		{name: "Title", single: &m.Title},
		{name: "Description", single: &m.Description},
		{name: "Authors", multi: &m.Authors},
		{name: "Tags", multi: &m.Tags},
		{name: "Language", single: &m.Language},
		{name: "Version", single: &m.Version},
		{name: "License", single: &m.License},
		{name: "Source", single: &m.Source},
	}
}

// Element returns the meta block as an SML element.
func (m *Meta) Element() *sml.Element {
	e := sml.NewElement(metaName)
	if m == nil {
		return e
	}
	for _, f := range m.fields() {
		switch {
		case f.single != nil && *f.single != "":
			e.Add(sml.NewAttribute(f.name, wsv.String(*f.single)))
		case f.multi != nil && len(*f.multi) != 0:
			values := make([]*string, 0, len(*f.multi))
			for _, v := range *f.multi {
				values = append(values, wsv.String(v))
			}
			e.Add(sml.NewAttribute(f.name, values...))
		}
	}
	for _, a := range m.Extra {
		e.Add(a)
	}
	return e
}

// parseMeta reads a meta element. Known attributes must appear once with
// non-null values; single valued ones take exactly one value.
func parseMeta(e *sml.Element) (*Meta, error) {
	m := &Meta{}
	fields := m.fields()
	seen := make([]bool, len(fields))
	for _, n := range e.Nodes {
		a, ok := n.(*sml.Attribute)
		if !ok {
			return nil, ErrInvalidMeta.WithDetail("element", n.NodeName())
		}
		i := slices.IndexFunc(fields, func(f metaField) bool { return strings.EqualFold(f.name, a.Name) })
		if i < 0 {
			m.Extra = append(m.Extra, a)
			continue
		}
		if seen[i] {
			return nil, ErrInvalidMeta.WithDetail("duplicate", fields[i].name)
		}
		seen[i] = true
		if slices.Contains(a.Values, nil) {
			return nil, ErrInvalidMeta.WithDetail("null", fields[i].name)
		}
		f := fields[i]
		if f.single != nil {
			if len(a.Values) != 1 {
				return nil, ErrInvalidMeta.WithDetail("values", fields[i].name)
			}
			*f.single = *a.Values[0]
			continue
		}
		for _, v := range a.Values {
			*f.multi = append(*f.multi, *v)
		}
	}
	return m, nil
}
