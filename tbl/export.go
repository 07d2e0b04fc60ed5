// JSON form of a document.

package tbl

import (
	"github.com/invopop/jsonschema"

	"github.com/maruel/tbl/reliabletxt"
	"github.com/maruel/tbl/sml"
)

// Export is the JSON form of a document.
type Export struct {
	Encoding string      `json:"encoding" jsonschema:"description=Text encoding of the document,enum=utf-8,enum=utf-16,enum=utf-16-reverse,enum=utf-32"`
	Columns  []string    `json:"columns" jsonschema:"description=Column names,minItems=2"`
	Meta     *ExportMeta `json:"meta,omitempty" jsonschema:"description=Document annotations"`
	Rows     [][]*string `json:"rows" jsonschema:"description=Rows; the first value names the row and null values are absent cells"`
}

// ExportMeta is the JSON form of Meta.
type ExportMeta struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Authors     []string    `json:"authors,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Language    string      `json:"language,omitempty"`
	Version     string      `json:"version,omitempty"`
	License     string      `json:"license,omitempty"`
	Source      string      `json:"source,omitempty"`
	Extra       [][]*string `json:"extra,omitempty" jsonschema:"description=Other attributes; the first value is the attribute name"`
}

// Export returns the JSON form of d.
func (d *Document) Export() *Export {
	e := &Export{
		Encoding: d.Header.Encoding().String(),
		Columns:  d.Header.ColumnNames(),
		Rows:     make([][]*string, 0, len(d.Rows)),
	}
	if m := d.Header.meta; m.HasAny() {
		e.Meta = &ExportMeta{
			Title:       m.Title,
			Description: m.Description,
			Authors:     m.Authors,
			Tags:        m.Tags,
			Language:    m.Language,
			Version:     m.Version,
			License:     m.License,
			Source:      m.Source,
		}
		for _, a := range m.Extra {
			e.Meta.Extra = append(e.Meta.Extra, append([]*string{&a.Name}, a.Values...))
		}
	}
	for _, row := range d.Rows {
		e.Rows = append(e.Rows, row)
	}
	return e
}

// Document converts the JSON form back, validating header and rows.
func (e *Export) Document() (*Document, error) {
	enc := reliabletxt.UTF8
	if e.Encoding != "" {
		var err error
		if enc, err = reliabletxt.ParseEncoding(e.Encoding); err != nil {
			return nil, err
		}
	}
	h, err := NewHeader(e.Columns...)
	if err != nil {
		return nil, err
	}
	h = h.WithEncoding(enc)
	if m := e.Meta; m != nil {
		meta := &Meta{
			Title:       m.Title,
			Description: m.Description,
			Authors:     m.Authors,
			Tags:        m.Tags,
			Language:    m.Language,
			Version:     m.Version,
			License:     m.License,
			Source:      m.Source,
		}
		for _, x := range m.Extra {
			if len(x) < 2 || x[0] == nil {
				return nil, ErrInvalidMeta.WithDetail("extra", len(meta.Extra))
			}
			meta.Extra = append(meta.Extra, sml.NewAttribute(*x[0], x[1:]...))
		}
		h = h.WithMeta(meta)
	}
	d := &Document{Header: h, Rows: make([]Row, 0, len(e.Rows))}
	for _, r := range e.Rows {
		d.Rows = append(d.Rows, Row(r))
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// ExportSchema returns the JSON Schema of Export.
func ExportSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	return r.Reflect(&Export{})
}
