// Whole-document load, save and append.

package tbl

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/maruel/tbl/reliabletxt"
)

// Load reads a whole text table document.
func Load(path string) (*Document, error) {
	return load(textTransport{}, path)
}

// LoadBinary reads a whole binary table document.
func LoadBinary(path string) (*Document, error) {
	return load(binaryTransport{}, path)
}

func load(t transport, path string) (*Document, error) {
	r, err := openReader(t, path, nil)
	if err != nil {
		return nil, err
	}
	d, err := readDocument(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Save writes d to path with one tab per nesting level, in the encoding of
// its header. The document is written to a temporary file renamed over path
// once complete.
func Save(d *Document, path string) error {
	return save(textTransport{}, d, path)
}

// SaveBinary writes d to path as a binary document.
func SaveBinary(d *Document, path string) error {
	return save(binaryTransport{}, d, path)
}

func save(t transport, d *Document, path string) error {
	tmp := reliabletxt.TempPath(path)
	w, err := createWriter(t, d.Header, tmp, reliabletxt.CreateNew)
	if err != nil {
		return err
	}
	if err = multierr.Append(w.WriteRows(d.Rows), w.Close()); err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		return errors.Join(fmt.Errorf("%s: %w", path, err), os.Remove(tmp))
	}
	return nil
}

// SaveMinified writes d to path without indentation and with "-" as end
// keyword.
func SaveMinified(d *Document, path string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return reliabletxt.WriteAllText(d.MinifiedString(), path, d.Header.Encoding(), true)
}

// SaveAligned writes d to path with row values padded into columns.
func SaveAligned(d *Document, path string, rightAligned ...bool) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return reliabletxt.WriteAllText(d.AlignedString(rightAligned...), path, d.Header.Encoding(), true)
}

// AppendRows appends rows to the text document at path, creating it from
// template if needed. An existing document must have as many columns as
// template. Nothing happens when rows is empty.
func AppendRows(rows []Row, template *Header, path string) error {
	return appendRows(textTransport{}, rows, template, path)
}

// AppendRowsBinary is AppendRows for binary documents.
func AppendRowsBinary(rows []Row, template *Header, path string) error {
	return appendRows(binaryTransport{}, rows, template, path)
}

func appendRows(t transport, rows []Row, template *Header, path string) (err error) {
	if len(rows) == 0 {
		return nil
	}
	w, err := createWriter(t, template, path, reliabletxt.CreateOrAppend)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(w))
	return w.WriteRows(rows)
}
