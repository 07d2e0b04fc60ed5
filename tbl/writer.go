package tbl

import (
	"errors"
	"fmt"
	"iter"

	"github.com/maruel/tbl/reliabletxt"
	"github.com/maruel/tbl/sml"
)

// Writer writes the rows of a table document one at a time.
type Writer struct {
	nw           nodeWriter
	header       *Header
	encoding     reliabletxt.Encoding
	appendReader func(chunkSize int) (nodeReader, error)
}

// CreateWriter opens a text table document for writing.
//
// When mode is reliabletxt.CreateOrAppend and the document exists, its header
// is kept and must have as many columns as template; the document is not
// modified until the first row is written. Otherwise the header of template
// is written.
func CreateWriter(template *Header, path string, mode reliabletxt.WriterMode) (*Writer, error) {
	return createWriter(textTransport{}, template, path, mode)
}

// CreateBinaryWriter is CreateWriter for binary table documents.
func CreateBinaryWriter(template *Header, path string, mode reliabletxt.WriterMode) (*Writer, error) {
	return createWriter(binaryTransport{}, template, path, mode)
}

func createWriter(t transport, template *Header, path string, mode reliabletxt.WriterMode) (*Writer, error) {
	w, err := t.createWriter(template, path, mode)
	if err != nil {
		return nil, err
	}
	if err := w.init(template); err != nil {
		return nil, errors.Join(fmt.Errorf("%s: %w", path, err), w.nw.Close())
	}
	return w, nil
}

func (w *Writer) init(template *Header) error {
	if !w.nw.Existing() {
		for _, n := range template.nodes() {
			if err := w.nw.WriteNode(n); err != nil {
				return err
			}
		}
		w.header = template.WithEncoding(w.encoding)
		return nil
	}
	r, err := AppendReader(w)
	if err != nil {
		return err
	}
	if err := r.Close(); err != nil {
		return err
	}
	if got, want := r.Header().ColumnCount(), template.ColumnCount(); got != want {
		return ErrColumnCountMismatch.WithDetail("existing", got).WithDetail("template", want)
	}
	w.header = r.Header()
	return nil
}

// Header returns the header of the document being written. When resuming an
// existing document, it is the header found in the document.
func (w *Writer) Header() *Header {
	return w.header
}

// Encoding returns the text encoding of the document.
func (w *Writer) Encoding() reliabletxt.Encoding {
	return w.encoding
}

// Existing reports whether the writer resumes an existing document.
func (w *Writer) Existing() bool {
	return w.nw.Existing()
}

// WriteRow validates and writes a row.
func (w *Writer) WriteRow(row Row) error {
	if err := validateRow(row, w.header.ColumnCount()); err != nil {
		return err
	}
	return w.nw.WriteNode(sml.NewAttribute(*row[0], row[1:]...))
}

func validateRow(row Row, columns int) error {
	switch {
	case len(row) < 2:
		return ErrTooFewValues.WithDetail("values", len(row))
	case row[0] == nil:
		return ErrNullFirstValue
	case len(row) > columns:
		return ErrTooManyValues.WithDetail("values", len(row)).WithDetail("columns", columns)
	}
	return nil
}

// WriteRows writes rows in order and stops at the first failure. Rows before
// the failing one are written.
func (w *Writer) WriteRows(rows []Row) error {
	for i, row := range rows {
		if err := w.WriteRow(row); err != nil {
			return atRow(i, err)
		}
	}
	return nil
}

// WriteSeq writes the rows produced by seq, pulling one row at a time, and
// stops at the first failure.
func (w *Writer) WriteSeq(seq iter.Seq[Row]) error {
	i := 0
	for row := range seq {
		if err := w.WriteRow(row); err != nil {
			return atRow(i, err)
		}
		i++
	}
	return nil
}

// IsClosed reports whether Close was called.
func (w *Writer) IsClosed() bool {
	return w.nw.IsClosed()
}

// Close completes the document and releases it. Calling it more than once is
// a no-op.
func (w *Writer) Close() error {
	return w.nw.Close()
}
