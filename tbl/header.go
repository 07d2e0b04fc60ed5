package tbl

import (
	"errors"
	"io"
	"slices"

	"github.com/maruel/tbl/reliabletxt"
	"github.com/maruel/tbl/sml"
	"github.com/maruel/tbl/wsv"
)

const rootName = "Table"

// Header is the column names and meta block of a table. It is immutable.
type Header struct {
	columnNames []string
	meta        *Meta
	encoding    reliabletxt.Encoding
}

// NewHeader returns a UTF-8 header without meta block.
//
// At least two column names are required: the first names the column names
// attribute and the others are its values.
func NewHeader(columnNames ...string) (*Header, error) {
	if len(columnNames) < 2 {
		return nil, ErrTooFewColumns.WithDetail("columns", len(columnNames))
	}
	return &Header{columnNames: slices.Clone(columnNames), meta: &Meta{}}, nil
}

// MustNewHeader is NewHeader that panics on error.
func MustNewHeader(columnNames ...string) *Header {
	h, err := NewHeader(columnNames...)
	if err != nil {
		panic(err)
	}
	return h
}

// WithMeta returns a copy of the header using m as its meta block.
func (h *Header) WithMeta(m *Meta) *Header {
	c := *h
	c.meta = m.Clone()
	return &c
}

// WithEncoding returns a copy of the header using enc.
func (h *Header) WithEncoding(enc reliabletxt.Encoding) *Header {
	c := *h
	c.encoding = enc
	return &c
}

// ColumnNames returns a copy of the column names.
func (h *Header) ColumnNames() []string {
	return slices.Clone(h.columnNames)
}

// ColumnCount returns the number of columns.
func (h *Header) ColumnCount() int {
	return len(h.columnNames)
}

// Meta returns a copy of the meta block, empty when the table has none.
func (h *Header) Meta() *Meta {
	return h.meta.Clone()
}

// Encoding returns the text encoding of the table. It is UTF-8 for binary
// documents.
func (h *Header) Encoding() reliabletxt.Encoding {
	return h.encoding
}

// columnsAttribute returns the attribute holding the column names.
func (h *Header) columnsAttribute() *sml.Attribute {
	values := make([]*string, 0, len(h.columnNames)-1)
	for _, n := range h.columnNames[1:] {
		values = append(values, wsv.String(n))
	}
	return sml.NewAttribute(h.columnNames[0], values...)
}

// nodes returns the header as the first children of the root element.
func (h *Header) nodes() []sml.Node {
	if h.meta.HasAny() {
		return []sml.Node{h.meta.Element(), h.columnsAttribute()}
	}
	return []sml.Node{h.columnsAttribute()}
}

// readHeader recognizes the header from the first children of the root
// element. On success the next node read is the first row.
func readHeader(nr nodeReader, enc reliabletxt.Encoding) (*Header, error) {
	if root := nr.Root(); !root.HasName(rootName) {
		return nil, ErrNotTable.WithDetail("root", root.Name)
	}
	n, err := readHeaderNode(nr)
	if err != nil {
		return nil, err
	}
	meta := &Meta{}
	if e, ok := n.(*sml.Element); ok {
		if !e.HasName(metaName) {
			return nil, ErrMetaExpected.WithDetail("element", e.Name)
		}
		if meta, err = parseMeta(e); err != nil {
			return nil, err
		}
		if n, err = readHeaderNode(nr); err != nil {
			return nil, err
		}
	}
	a, ok := n.(*sml.Attribute)
	if !ok {
		return nil, ErrColumnsExpected.WithDetail("element", n.NodeName())
	}
	if len(a.Values) == 0 {
		return nil, ErrTooFewColumns.WithDetail("columns", 1)
	}
	names := make([]string, 0, len(a.Values)+1)
	names = append(names, a.Name)
	for i, v := range a.Values {
		if v == nil {
			return nil, ErrNullColumnName.WithDetail("column", i+2)
		}
		names = append(names, *v)
	}
	return &Header{columnNames: names, meta: meta, encoding: enc}, nil
}

func readHeaderNode(nr nodeReader) (sml.Node, error) {
	n, err := nr.ReadNode()
	if errors.Is(err, io.EOF) {
		return nil, ErrColumnsExpected
	}
	return n, err
}
