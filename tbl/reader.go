package tbl

import (
	"errors"
	"io"
	"iter"
	"slices"

	"github.com/maruel/tbl/reliabletxt"
	"github.com/maruel/tbl/sml"
)

// Row is a row name followed by its values. Nil values are nulls. A row holds
// at least two values and never more than the column count; shorter rows
// leave the trailing columns null.
type Row []*string

// NewRow returns a row of non-null values.
func NewRow(values ...string) Row {
	r := make(Row, 0, len(values))
	for _, v := range values {
		r = append(r, &v)
	}
	return r
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	return Row(cloneValues(r))
}

// Strings returns the values, with null replaced by null.
func (r Row) Strings(null string) []string {
	out := make([]string, 0, len(r))
	for _, v := range r {
		if v == nil {
			out = append(out, null)
		} else {
			out = append(out, *v)
		}
	}
	return out
}

func cloneValues(values []*string) []*string {
	if values == nil {
		return nil
	}
	out := make([]*string, 0, len(values))
	for _, v := range values {
		if v != nil {
			s := *v
			v = &s
		}
		out = append(out, v)
	}
	return out
}

// Reader reads the rows of a table document one at a time.
type Reader struct {
	nr     nodeReader
	header *Header
}

// OpenReader opens a text table document.
func OpenReader(path string, opts ...Option) (*Reader, error) {
	return openReader(textTransport{}, path, opts)
}

// OpenBinaryReader opens a binary table document.
func OpenBinaryReader(path string, opts ...Option) (*Reader, error) {
	return openReader(binaryTransport{}, path, opts)
}

func openReader(t transport, path string, opts []Option) (*Reader, error) {
	nr, enc, err := t.openReader(path, newOptions(opts))
	if err != nil {
		return nil, err
	}
	return newReader(nr, enc)
}

// newReader recognizes the header of nr. nr is closed on failure.
func newReader(nr nodeReader, enc reliabletxt.Encoding) (*Reader, error) {
	h, err := readHeader(nr, enc)
	if err != nil {
		return nil, errors.Join(err, nr.Close())
	}
	return &Reader{nr: nr, header: h}, nil
}

// AppendReader returns a reader over the rows already present in the
// document w resumes. The reader must be done before the first row is
// written. Closing it leaves w open.
func AppendReader(w *Writer, opts ...Option) (*Reader, error) {
	if !w.Existing() {
		return nil, ErrNotAppending
	}
	nr, err := w.appendReader(newOptions(opts).chunkSize)
	if err != nil {
		return nil, err
	}
	return newReader(nr, w.encoding)
}

// Header returns the header of the table.
func (r *Reader) Header() *Header {
	return r.header
}

// Encoding returns the text encoding of the document.
func (r *Reader) Encoding() reliabletxt.Encoding {
	return r.header.Encoding()
}

// Existing reports whether the document existed; always true except for a
// reader returned by AppendReader.
func (r *Reader) Existing() bool {
	return r.nr.Existing()
}

// ReadRow returns the next row. It returns io.EOF after the last row, on
// every call.
func (r *Reader) ReadRow() (Row, error) {
	n, err := r.nr.ReadNode()
	if err != nil {
		return nil, err
	}
	a, ok := n.(*sml.Attribute)
	if !ok {
		return nil, ErrAttributeExpected.WithDetail("element", n.NodeName())
	}
	if got := len(a.Values) + 1; got > r.header.ColumnCount() {
		return nil, ErrTooManyValues.WithDetail("values", got).WithDetail("columns", r.header.ColumnCount())
	}
	row := make(Row, 0, len(a.Values)+1)
	row = append(row, &a.Name)
	return append(row, a.Values...), nil
}

// Rows returns an iterator over the remaining rows. Iteration stops after the
// first error, which is yielded with a nil row.
func (r *Reader) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for {
			row, err := r.ReadRow()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(row, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll returns the remaining rows.
func (r *Reader) ReadAll() ([]Row, error) {
	var rows []Row
	for row, err := range r.Rows() {
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	return slices.Clip(rows), nil
}

// IsClosed reports whether Close was called.
func (r *Reader) IsClosed() bool {
	return r.nr.IsClosed()
}

// Close releases the document. Calling it more than once is a no-op.
func (r *Reader) Close() error {
	return r.nr.Close()
}
