// Whole-file load and atomic save of ReliableTXT documents.

package reliabletxt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/maruel/ksid"
)

// Document is the text of a file together with the encoding it was stored in.
type Document struct {
	Text     string
	Encoding Encoding
}

// Load reads a whole file and decodes it.
func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path) //nolint:gosec // G304: caller-provided document path
	if err != nil {
		return nil, err
	}
	text, enc, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Document{Text: text, Encoding: enc}, nil
}

// ReadAllText returns the text of a file, discarding its encoding.
func ReadAllText(path string) (string, error) {
	d, err := Load(path)
	if err != nil {
		return "", err
	}
	return d.Text, nil
}

// Save writes the document to path, see WriteAllText.
func (d *Document) Save(path string, overwrite bool) error {
	return WriteAllText(d.Text, path, d.Encoding, overwrite)
}

// WriteAllText encodes text and writes it to path.
//
// The data is written to a temporary file in the same directory which is then
// renamed over path, so readers never observe a partially written document.
// When overwrite is false and path exists, an error wrapping fs.ErrExist is
// returned.
func WriteAllText(text, path string, enc Encoding, overwrite bool) error {
	data, err := Encode(text, enc)
	if err != nil {
		return err
	}
	return WriteAllBytes(data, path, overwrite)
}

// WriteAllBytes atomically replaces path with data.
func WriteAllBytes(data []byte, path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Lstat(path); err == nil {
			return fmt.Errorf("%s: %w", path, fs.ErrExist)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	tmpPath := TempPath(path)
	if err := writeFile(tmpPath, data, 0o644); err != nil {
		return errors.Join(fmt.Errorf("failed to write temp file: %w", err), removeIfExists(tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename temp file to %s: %w", path, err), os.Remove(tmpPath))
	}
	return nil
}

// writeFile is replaced in tests to simulate a failing disk.
var writeFile = os.WriteFile

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// TempPath returns a unique hidden path next to path, for writing a file
// that is then renamed over path.
func TempPath(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "."+base+"."+ksid.NewID().String()+".tmp")
}
