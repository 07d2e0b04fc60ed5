package tbl

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Table handles storage and in-memory caching for a single table document.
//
// It is safe for concurrent use. Appends go through AppendRows so the file on
// disk only grows; Replace rewrites it atomically.
type Table struct {
	path   string
	binary bool
	mu     sync.RWMutex

	header *Header
	rows   []Row
}

// OpenTable creates a Table and loads all rows from the text document at
// path. A missing document is created from template on the first append. An
// existing document must have as many columns as template.
func OpenTable(path string, template *Header) (*Table, error) {
	return openTable(path, template, false)
}

// OpenBinaryTable is OpenTable for binary documents.
func OpenBinaryTable(path string, template *Header) (*Table, error) {
	return openTable(path, template, true)
}

func openTable(path string, template *Header, binary bool) (*Table, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	t := &Table{path: path, binary: binary, header: template}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr := t.transport()
	d, err := load(tr, t.path)
	if errors.Is(err, fs.ErrNotExist) {
		t.rows = []Row{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load table: %w", err)
	}
	if got, want := d.Header.ColumnCount(), t.header.ColumnCount(); got != want {
		return fmt.Errorf("%s: %w", t.path, ErrColumnCountMismatch.WithDetail("existing", got).WithDetail("template", want))
	}
	t.header = d.Header
	t.rows = d.Rows
	return nil
}

func (t *Table) transport() transport {
	if t.binary {
		return binaryTransport{}
	}
	return textTransport{}
}

// Header returns the header of the table.
func (t *Table) Header() *Header {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.header
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Last returns a clone of the last row, or false if empty.
func (t *Table) Last() (Row, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.rows) == 0 {
		return nil, false
	}
	return t.rows[len(t.rows)-1].Clone(), true
}

// All returns an iterator over clones of all rows.
func (t *Table) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Append adds rows to the table and persists them. Invalid rows are rejected
// before anything is written.
func (t *Table) Append(rows ...Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, row := range rows {
		if err := validateRow(row, t.header.ColumnCount()); err != nil {
			return atRow(len(t.rows)+i, err)
		}
	}
	if err := appendRows(t.transport(), rows, t.header, t.path); err != nil {
		return fmt.Errorf("failed to append rows: %w", err)
	}
	for _, row := range rows {
		t.rows = append(t.rows, row.Clone())
	}
	return nil
}

// Replace replaces all rows and persists them.
func (t *Table) Replace(rows []Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := NewDocument(t.header, rows...)
	if err := d.Validate(); err != nil {
		return err
	}
	if err := save(t.transport(), d, t.path); err != nil {
		return fmt.Errorf("failed to replace rows: %w", err)
	}
	t.rows = make([]Row, 0, len(rows))
	for _, row := range rows {
		t.rows = append(t.rows, row.Clone())
	}
	return nil
}

// Compact rewrites the document with the cached rows, dropping whatever
// formatting the file had.
func (t *Table) Compact() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return save(t.transport(), NewDocument(t.header, slices.Clone(t.rows)...), t.path)
}
