package tbl

import (
	"errors"
	"fmt"

	"github.com/maruel/tbl/reliabletxt"
	"github.com/maruel/tbl/sml"
)

// Document is a whole table held in memory.
type Document struct {
	Header *Header
	Rows   []Row
}

// NewDocument returns a document with the given rows.
func NewDocument(h *Header, rows ...Row) *Document {
	return &Document{Header: h, Rows: rows}
}

// ParseDocument parses the text of a table document. The header encoding is
// UTF-8.
func ParseDocument(text string) (*Document, error) {
	d, err := sml.Parse(text)
	if err != nil {
		return nil, err
	}
	return FromElement(d.Root, reliabletxt.UTF8)
}

// FromElement reads a table from the root element of an SML tree.
func FromElement(root *sml.Element, enc reliabletxt.Encoding) (*Document, error) {
	r, err := newReader(&elementReader{root: root}, enc)
	if err != nil {
		return nil, err
	}
	return readDocument(r)
}

// readDocument reads every row of r and closes it.
func readDocument(r *Reader) (*Document, error) {
	rows, err := r.ReadAll()
	if err = errors.Join(err, r.Close()); err != nil {
		return nil, err
	}
	return &Document{Header: r.Header(), Rows: rows}, nil
}

// Validate checks every row against the header.
func (d *Document) Validate() error {
	for i, row := range d.Rows {
		if err := validateRow(row, d.Header.ColumnCount()); err != nil {
			return atRow(i, err)
		}
	}
	return nil
}

// Element returns the document as an SML tree. Rows are not validated: rows
// without values or with a null first value have no SML form and are
// skipped. Call Validate first to reject them.
func (d *Document) Element() *sml.Element {
	root := sml.NewElement(rootName, d.Header.nodes()...)
	for _, row := range d.Rows {
		if len(row) == 0 || row[0] == nil {
			continue
		}
		root.Add(sml.NewAttribute(*row[0], row[1:]...))
	}
	return root
}

func (d *Document) sml() *sml.Document {
	doc := sml.NewDocument(d.Element())
	doc.Encoding = d.Header.Encoding()
	return doc
}

// String renders the document with one tab per nesting level. Like Element,
// it skips rows that cannot be represented.
func (d *Document) String() string {
	return d.sml().String()
}

// MinifiedString renders the document without indentation and with "-" as
// end keyword.
func (d *Document) MinifiedString() string {
	return d.sml().MinifiedString()
}

// AlignedString renders the document with the values of rows padded into
// columns. rightAligned selects right alignment per column. It returns an
// empty string when the document is invalid.
func (d *Document) AlignedString(rightAligned ...bool) string {
	s, _ := d.Format(&sml.Options{Indentation: "\t", Align: true, RightAligned: rightAligned})
	return s
}

// Format validates the document and renders it with custom options.
func (d *Document) Format(o *sml.Options) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	return d.sml().Format(o)
}

// atRow annotates err with a row index.
func atRow(i int, err error) error {
	if e, ok := err.(*Error); ok {
		return e.WithDetail("row", i)
	}
	return fmt.Errorf("row %d: %w", i, err)
}
