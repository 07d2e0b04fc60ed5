package tbl

import (
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/maruel/tbl/reliabletxt"
	"github.com/maruel/tbl/sml"
	"github.com/maruel/tbl/wsv"
)

func writeText(t *testing.T, path, text string) {
	t.Helper()
	if err := reliabletxt.WriteAllText(text, path, reliabletxt.UTF8, true); err != nil {
		t.Fatal(err)
	}
}

func readText(t *testing.T, path string) string {
	t.Helper()
	s, err := reliabletxt.ReadAllText(path)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func rowsEqual(a, b []Row) bool {
	return slices.EqualFunc(a, b, func(x, y Row) bool {
		return slices.EqualFunc(x, y, func(p, q *string) bool {
			return (p == nil && q == nil) || (p != nil && q != nil && *p == *q)
		})
	})
}

func metaTemplate(t *testing.T) *Header {
	t.Helper()
	return MustNewHeader("Column1", "Column2").WithMeta(&Meta{Description: "Text"})
}

func TestNewHeader(t *testing.T) {
	for _, names := range [][]string{nil, {"Column1"}} {
		if _, err := NewHeader(names...); !errors.Is(err, ErrTooFewColumns) {
			t.Errorf("NewHeader(%q) error = %v", names, err)
		}
	}
	names := []string{"a", "a", "b"}
	h, err := NewHeader(names...)
	if err != nil {
		t.Fatal(err)
	}
	names[0] = "x"
	if got := h.ColumnNames(); !slices.Equal(got, []string{"a", "a", "b"}) || h.ColumnCount() != 3 {
		t.Errorf("ColumnNames() = %q", got)
	}
	if h.Meta().HasAny() || h.Encoding() != reliabletxt.UTF8 {
		t.Errorf("Meta() = %+v, Encoding() = %s", h.Meta(), h.Encoding())
	}
}

func TestReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Test.tbl")
	writeText(t, path, "Table\n\tColumn1 Column2\n\tValue11 Value12\n\tValue21 Value22\nEnd")
	r, err := OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	if r.Encoding() != reliabletxt.UTF8 || !slices.Equal(r.Header().ColumnNames(), []string{"Column1", "Column2"}) {
		t.Errorf("Encoding() = %s, ColumnNames() = %q", r.Encoding(), r.Header().ColumnNames())
	}
	if r.IsClosed() || !r.Existing() {
		t.Errorf("IsClosed() = %v, Existing() = %v", r.IsClosed(), r.Existing())
	}
	for _, want := range []Row{NewRow("Value11", "Value12"), NewRow("Value21", "Value22")} {
		got, err := r.ReadRow()
		if err != nil {
			t.Fatal(err)
		}
		if !rowsEqual([]Row{got}, []Row{want}) {
			t.Errorf("ReadRow() = %q, want %q", got.Strings("-"), want.Strings("-"))
		}
	}
	for range 2 {
		if row, err := r.ReadRow(); row != nil || !errors.Is(err, io.EOF) {
			t.Fatalf("ReadRow() = %v, %v, want io.EOF", row, err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if !r.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}

	t.Run("valid", func(t *testing.T) {
		tests := []struct {
			name string
			in   string
			meta Meta
		}{
			{"empty meta", "Table\n\tMeta\n\tEnd\n\tColumn1 Column2\nEnd", Meta{}},
			{"case insensitive", "table\n\tmeta\n\t\tdescription Text\n\tend\n\tColumn1 Column2\nEND", Meta{Description: "Text"}},
			{"minified", "Table\nMeta\nTitle T\nAuthors A B\n-\nColumn1 Column2\n-", Meta{Title: "T", Authors: []string{"A", "B"}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				writeText(t, path, tt.in)
				r, err := OpenReader(path)
				if err != nil {
					t.Fatalf("OpenReader() error = %v", err)
				}
				defer r.Close()
				m := r.Header().Meta()
				if m.Title != tt.meta.Title || m.Description != tt.meta.Description || !slices.Equal(m.Authors, tt.meta.Authors) {
					t.Errorf("Meta() = %+v, want %+v", m, tt.meta)
				}
			})
		}
	})

	t.Run("header errors", func(t *testing.T) {
		tests := []struct {
			in   string
			want error
		}{
			{"Document\nEnd", ErrNotTable},
			{"Table\nEnd", ErrColumnsExpected},
			{"Table\n\tElement\n\tEnd\nEnd", ErrMetaExpected},
			{"Table\n\tMeta\n\tEnd\nEnd", ErrColumnsExpected},
			{"Table\n\tMeta\n\tEnd\n\tMeta\n\tEnd\nEnd", ErrColumnsExpected},
			{"Table\n\tMeta\n\tEnd\n\tColumn1 -\nEnd", ErrNullColumnName},
			{"Table\n\tColumn1 -\nEnd", ErrNullColumnName},
			{"Table\n\tMeta\n\t\tSub\n\t\tEnd\n\tEnd\n\tColumn1 Column2\nEnd", ErrInvalidMeta},
			{"Table\n\tMeta\n\t\tTitle A B\n\tEnd\n\tColumn1 Column2\nEnd", ErrInvalidMeta},
			{"Table\n\tMeta\n\t\tTags -\n\tEnd\n\tColumn1 Column2\nEnd", ErrInvalidMeta},
		}
		for _, tt := range tests {
			t.Run(tt.in, func(t *testing.T) {
				writeText(t, path, tt.in)
				r, err := OpenReader(path)
				if !errors.Is(err, tt.want) {
					if r != nil {
						_ = r.Close()
					}
					t.Fatalf("OpenReader() error = %v, want %v", err, tt.want)
				}
				var e *Error
				if !errors.As(err, &e) || e.Kind != KindFormat {
					t.Errorf("error %v is not a format error", err)
				}
			})
		}
	})

	t.Run("row errors", func(t *testing.T) {
		tests := []struct {
			in   string
			want error
		}{
			{"Table\n\tMeta\n\tEnd\n\tColumn1 Column2\n\tElement\n\tEnd\nEnd", ErrAttributeExpected},
			{"Table\n\tMeta\n\tEnd\n\tColumn1 Column2\n\tValue11 Value12 Value13\nEnd", ErrTooManyValues},
		}
		for _, tt := range tests {
			t.Run(tt.in, func(t *testing.T) {
				writeText(t, path, tt.in)
				r, err := OpenReader(path)
				if err != nil {
					t.Fatal(err)
				}
				defer r.Close()
				if _, err := r.ReadRow(); !errors.Is(err, tt.want) {
					t.Errorf("ReadRow() error = %v, want %v", err, tt.want)
				}
			})
		}
	})

	t.Run("transport errors", func(t *testing.T) {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := OpenReader(path); !errors.Is(err, reliabletxt.ErrNoPreamble) {
			t.Errorf("OpenReader() error = %v, want ErrNoPreamble", err)
		}
		var e *Error
		if _, err := OpenReader(filepath.Join(t.TempDir(), "missing.tbl")); !errors.Is(err, os.ErrNotExist) || errors.As(err, &e) {
			t.Errorf("OpenReader() error = %v, want unclassified ErrNotExist", err)
		}
	})

	t.Run("short rows", func(t *testing.T) {
		writeText(t, path, "Table\n\tA B C\n\tx y\n\tz - -\nEnd")
		r, err := OpenReader(path, WithChunkSize(16))
		if err != nil {
			t.Fatal(err)
		}
		defer r.Close()
		rows, err := r.ReadAll()
		if err != nil {
			t.Fatal(err)
		}
		want := []Row{NewRow("x", "y"), {wsv.String("z"), nil, nil}}
		if !rowsEqual(rows, want) {
			t.Errorf("ReadAll() = %v", rows)
		}
	})
}

func TestRowsIterator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Test.tbl")
	writeText(t, path, "Table\n\tColumn1 Column2\n\ta 1\n\tb 2\n\tc 3 4\n\td 5\nEnd")
	r, err := OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	next, stop := iter.Pull2(r.Rows())
	defer stop()
	row, err, ok := next()
	if !ok || err != nil || *row[0] != "a" {
		t.Fatalf("next() = %v, %v, %v", row, err, ok)
	}
	// Pulling and ReadRow share the same cursor.
	if row, err := r.ReadRow(); err != nil || *row[0] != "b" {
		t.Fatalf("ReadRow() = %v, %v", row, err)
	}
	var names []string
	var last error
	for row, err := range r.Rows() {
		if err != nil {
			last = err
			continue
		}
		names = append(names, *row[0])
	}
	if len(names) != 0 || !errors.Is(last, ErrTooManyValues) {
		t.Errorf("Rows() = %q, %v", names, last)
	}
}

func TestWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Test.tbl")
	template := metaTemplate(t)
	w, err := CreateWriter(template, path, reliabletxt.CreateOrOverwrite)
	if err != nil {
		t.Fatal(err)
	}
	if w.Encoding() != reliabletxt.UTF8 || w.IsClosed() || w.Existing() {
		t.Errorf("Encoding() = %s, IsClosed() = %v, Existing() = %v", w.Encoding(), w.IsClosed(), w.Existing())
	}
	if !slices.Equal(w.Header().ColumnNames(), []string{"Column1", "Column2"}) {
		t.Errorf("ColumnNames() = %q", w.Header().ColumnNames())
	}
	var e *Error
	if _, err := AppendReader(w); !errors.As(err, &e) || e.Kind != KindUsage || !errors.Is(err, ErrNotAppending) {
		t.Errorf("AppendReader() error = %v", err)
	}
	if err := w.WriteRow(NewRow("Value11", "Value12")); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteRows([]Row{{wsv.String("Value21"), nil}, NewRow("Value31", "Value32")}); err != nil {
		t.Fatal(err)
	}
	for _, tt := range []struct {
		row  Row
		want error
	}{
		{Row{}, ErrTooFewValues},
		{NewRow("a"), ErrTooFewValues},
		{Row{nil, nil}, ErrNullFirstValue},
		{NewRow("Value31", "Value32", "Value33"), ErrTooManyValues},
	} {
		if err := w.WriteRow(tt.row); !errors.Is(err, tt.want) {
			t.Errorf("WriteRow(%v) error = %v, want %v", tt.row, err, tt.want)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil || !w.IsClosed() {
		t.Errorf("second Close() = %v", err)
	}
	const full = "Table\n\tMeta\n\t\tDescription Text\n\tEnd\n\tColumn1 Column2\n\tValue11 Value12\n\tValue21 -\n\tValue31 Value32\nEnd"
	if got := readText(t, path); got != full {
		t.Fatalf("file = %q, want %q", got, full)
	}

	const headerOnly = "Table\n\tMeta\n\t\tDescription Text\n\tEnd\n\tColumn1 Column2\nEnd"
	if w, err = CreateWriter(template, path, reliabletxt.CreateOrOverwrite); err != nil {
		t.Fatal(err)
	}
	if w.Existing() {
		t.Error("Existing() = true when overwriting")
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := readText(t, path); got != headerOnly {
		t.Fatalf("file = %q, want %q", got, headerOnly)
	}

	if w, err = CreateWriter(MustNewHeader("Other1", "Other2"), path, reliabletxt.CreateOrAppend); err != nil {
		t.Fatal(err)
	}
	if !w.Existing() || w.Header().Meta().Description != "Text" || w.Header().ColumnNames()[0] != "Column1" {
		t.Errorf("Existing() = %v, Header() = %+v", w.Existing(), w.Header())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := readText(t, path); got != headerOnly {
		t.Fatalf("file = %q, want %q", got, headerOnly)
	}

	if w, err = CreateWriter(template, path, reliabletxt.CreateOrAppend); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteRow(NewRow("Value41", "Value42")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	const appended = "Table\n\tMeta\n\t\tDescription Text\n\tEnd\n\tColumn1 Column2\n\tValue41 Value42\nEnd"
	if got := readText(t, path); got != appended {
		t.Fatalf("file = %q, want %q", got, appended)
	}

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := CreateWriter(MustNewHeader("Column1", "Column2", "Column3"), path, reliabletxt.CreateOrAppend); !errors.Is(err, ErrColumnCountMismatch) {
		t.Errorf("CreateWriter() error = %v, want ErrColumnCountMismatch", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("column count mismatch modified the file")
	}

	t.Run("append reader", func(t *testing.T) {
		w, err := CreateWriter(template, path, reliabletxt.CreateOrAppend)
		if err != nil {
			t.Fatal(err)
		}
		r, err := AppendReader(w)
		if err != nil {
			t.Fatal(err)
		}
		rows, err := r.ReadAll()
		if err != nil {
			t.Fatal(err)
		}
		if err := r.Close(); err != nil {
			t.Fatal(err)
		}
		if !rowsEqual(rows, []Row{NewRow("Value41", "Value42")}) {
			t.Errorf("ReadAll() = %v", rows)
		}
		seq := func(yield func(Row) bool) {
			for _, s := range []string{"Value51", "Value61"} {
				if !yield(NewRow(s, "x")) {
					return
				}
			}
		}
		if err := w.WriteSeq(seq); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		want := "Table\n\tMeta\n\t\tDescription Text\n\tEnd\n\tColumn1 Column2\n\tValue41 Value42\n\tValue51 x\n\tValue61 x\nEnd"
		if got := readText(t, path); got != want {
			t.Errorf("file = %q, want %q", got, want)
		}
	})

	t.Run("minified append", func(t *testing.T) {
		writeText(t, path, "Table\nColumn1 Column2\nValue11 Value12\n-")
		if err := AppendRows([]Row{NewRow("Value21", "Value22")}, MustNewHeader("a", "b"), path); err != nil {
			t.Fatal(err)
		}
		if got, want := readText(t, path), "Table\nColumn1 Column2\nValue11 Value12\nValue21 Value22\n-"; got != want {
			t.Errorf("file = %q, want %q", got, want)
		}
	})

	t.Run("write rows stops at first failure", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "t.tbl")
		w, err := CreateWriter(MustNewHeader("A", "B"), p, reliabletxt.CreateNew)
		if err != nil {
			t.Fatal(err)
		}
		err = w.WriteRows([]Row{NewRow("1", "2"), NewRow("3"), NewRow("4", "5")})
		var e *Error
		if !errors.As(err, &e) || !errors.Is(err, ErrTooFewValues) || e.Details()["row"] != 1 {
			t.Errorf("WriteRows() error = %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		if got, want := readText(t, p), "Table\n\tA B\n\t1 2\nEnd"; got != want {
			t.Errorf("file = %q, want %q", got, want)
		}
	})
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Test.tbl")

	t.Run("save and load", func(t *testing.T) {
		for _, enc := range []reliabletxt.Encoding{reliabletxt.UTF8, reliabletxt.UTF16, reliabletxt.UTF16Reverse, reliabletxt.UTF32} {
			t.Run(enc.String(), func(t *testing.T) {
				d, err := ParseDocument("Table\n\tColumn1 Column2\n\tValue11 Value12\nEnd")
				if err != nil {
					t.Fatal(err)
				}
				d.Header = d.Header.WithEncoding(enc)
				if err := Save(d, path); err != nil {
					t.Fatal(err)
				}
				got, err := Load(path)
				if err != nil {
					t.Fatal(err)
				}
				if got.String() != d.String() || got.Header.Encoding() != enc {
					t.Errorf("Load() = %q (%s), want %q (%s)", got.String(), got.Header.Encoding(), d.String(), enc)
				}
			})
		}
	})

	t.Run("load empty file", func(t *testing.T) {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); !errors.Is(err, reliabletxt.ErrNoPreamble) {
			t.Errorf("Load() error = %v", err)
		}
	})

	d, err := ParseDocument("Table\n\tMeta\n\t\tTitle \"A title\"\n\t\tTags x y\n\t\tCustom 1 2\n\tEnd\n\tColumn1 \"Column 2\"\n\tValue11 Value12\n\tV2 -\n\tLongerValue31 \"\"\nEnd")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("renderings", func(t *testing.T) {
		tests := []struct {
			name string
			save func(*Document, string) error
		}{
			{"default", Save},
			{"minified", SaveMinified},
			{"aligned", func(d *Document, p string) error { return SaveAligned(d, p) }},
			{"right aligned", func(d *Document, p string) error { return SaveAligned(d, p, false, true) }},
			{"binary", SaveBinary},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.save(d, path); err != nil {
					t.Fatal(err)
				}
				loadFn := Load
				if tt.name == "binary" {
					loadFn = LoadBinary
				}
				got, err := loadFn(path)
				if err != nil {
					t.Fatal(err)
				}
				if got.String() != d.String() || !rowsEqual(got.Rows, d.Rows) {
					t.Errorf("round trip = %q, want %q", got.String(), d.String())
				}
				m := got.Header.Meta()
				if m.Title != "A title" || !slices.Equal(m.Tags, []string{"x", "y"}) || len(m.Extra) != 1 {
					t.Errorf("Meta() = %+v", m)
				}
			})
		}
	})

	t.Run("minified text", func(t *testing.T) {
		d, err := ParseDocument("Table\n\tColumn1 Column2\n\tValue11 Value12\nEnd")
		if err != nil {
			t.Fatal(err)
		}
		if err := SaveMinified(d, path); err != nil {
			t.Fatal(err)
		}
		if got, want := readText(t, path), "Table\nColumn1 Column2\nValue11 Value12\n-"; got != want {
			t.Errorf("file = %q, want %q", got, want)
		}
	})

	t.Run("aligned text", func(t *testing.T) {
		d := NewDocument(MustNewHeader("A", "Column2"), NewRow("Value11", "x"), Row{wsv.String("V"), nil})
		want := "Table\n\tA       Column2\n\tValue11 x\n\tV       -\nEnd"
		if got := d.AlignedString(); got != want {
			t.Errorf("AlignedString() = %q, want %q", got, want)
		}
	})

	t.Run("invalid rows are not saved", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "bad.tbl")
		bad := NewDocument(MustNewHeader("A", "B"), NewRow("1", "2", "3"))
		for _, save := range []func(*Document, string) error{Save, SaveMinified, SaveBinary} {
			if err := save(bad, p); !errors.Is(err, ErrTooManyValues) {
				t.Errorf("save error = %v", err)
			}
			if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("Stat() = %v", err)
			}
		}
		entries, err := os.ReadDir(filepath.Dir(p))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("temporary files left behind: %v", entries)
		}
	})

	t.Run("append rows", func(t *testing.T) {
		for _, binary := range []bool{false, true} {
			p := filepath.Join(t.TempDir(), "append.tbl")
			appendFn, loadFn := AppendRows, Load
			if binary {
				appendFn, loadFn = AppendRowsBinary, LoadBinary
			}
			template := MustNewHeader("Column1", "Column2")
			if err := appendFn(nil, template, p); err != nil {
				t.Fatal(err)
			}
			if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("empty append created the file: %v", err)
			}
			if err := appendFn([]Row{NewRow("Value11", "Value12")}, template, p); err != nil {
				t.Fatal(err)
			}
			if !binary {
				if got, want := readText(t, p), "Table\n\tColumn1 Column2\n\tValue11 Value12\nEnd"; got != want {
					t.Errorf("file = %q, want %q", got, want)
				}
			}
			if err := appendFn([]Row{}, template, p); err != nil {
				t.Fatal(err)
			}
			if err := appendFn([]Row{NewRow("Value21", "Value22")}, template, p); err != nil {
				t.Fatal(err)
			}
			got, err := loadFn(p)
			if err != nil {
				t.Fatal(err)
			}
			if want := []Row{NewRow("Value11", "Value12"), NewRow("Value21", "Value22")}; !rowsEqual(got.Rows, want) {
				t.Errorf("binary=%v rows = %v", binary, got.Rows)
			}
			err = appendFn([]Row{NewRow("a", "b"), NewRow("c", "d", "e")}, template, p)
			if !errors.Is(err, ErrTooManyValues) {
				t.Errorf("AppendRows() error = %v", err)
			}
			if got, err = loadFn(p); err != nil {
				t.Fatalf("document unreadable after failed append: %v", err)
			}
			if len(got.Rows) != 3 {
				t.Errorf("binary=%v len(rows) = %d, want 3", binary, len(got.Rows))
			}
		}
	})
}

func TestTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "Test.tbl")
	template := MustNewHeader("Name", "Value")
	tab, err := OpenTable(path, template)
	if err != nil {
		t.Fatal(err)
	}
	if tab.Len() != 0 {
		t.Errorf("Len() = %d", tab.Len())
	}
	if _, ok := tab.Last(); ok {
		t.Error("Last() on empty table")
	}
	if err := tab.Append(NewRow("a", "1"), NewRow("b", "2")); err != nil {
		t.Fatal(err)
	}
	if err := tab.Append(NewRow("c", "3"), NewRow("x", "y", "z")); !errors.Is(err, ErrTooManyValues) {
		t.Errorf("Append() error = %v", err)
	}
	if tab.Len() != 2 {
		t.Errorf("Len() = %d after rejected append", tab.Len())
	}
	last, ok := tab.Last()
	if !ok || *last[0] != "b" {
		t.Errorf("Last() = %v, %v", last, ok)
	}
	*last[0] = "mutated"

	reopened, err := OpenTable(path, template)
	if err != nil {
		t.Fatal(err)
	}
	if got := slices.Collect(reopened.All()); !rowsEqual(got, []Row{NewRow("a", "1"), NewRow("b", "2")}) {
		t.Errorf("All() = %v", got)
	}

	if err := tab.Replace([]Row{NewRow("z", "26")}); err != nil {
		t.Fatal(err)
	}
	if got, want := readText(t, path), "Table\n\tName Value\n\tz 26\nEnd"; got != want {
		t.Errorf("file = %q, want %q", got, want)
	}
	if err := tab.Replace([]Row{{nil, nil}}); !errors.Is(err, ErrNullFirstValue) {
		t.Errorf("Replace() error = %v", err)
	}
	writeText(t, path, "Table\nName   Value\nz 26\n-")
	if tab, err = OpenTable(path, template); err != nil {
		t.Fatal(err)
	}
	if err := tab.Compact(); err != nil {
		t.Fatal(err)
	}
	if got, want := readText(t, path), "Table\n\tName Value\n\tz 26\nEnd"; got != want {
		t.Errorf("file = %q, want %q", got, want)
	}
	if _, err := OpenTable(path, MustNewHeader("a", "b", "c")); !errors.Is(err, ErrColumnCountMismatch) {
		t.Errorf("OpenTable() error = %v", err)
	}

	t.Run("binary", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "Test.btbl")
		tab, err := OpenBinaryTable(p, template)
		if err != nil {
			t.Fatal(err)
		}
		if err := tab.Append(NewRow("a", "1")); err != nil {
			t.Fatal(err)
		}
		if err := tab.Append(Row{wsv.String("b"), nil}); err != nil {
			t.Fatal(err)
		}
		d, err := LoadBinary(p)
		if err != nil {
			t.Fatal(err)
		}
		if !rowsEqual(d.Rows, []Row{NewRow("a", "1"), {wsv.String("b"), nil}}) {
			t.Errorf("rows = %v", d.Rows)
		}
	})
}

func TestError(t *testing.T) {
	err := ErrTooManyValues.WithDetail("values", 3).WithDetail("columns", 2)
	if got, want := err.Error(), "tbl: row has more values than there are columns (columns=2 values=3)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if len(ErrTooManyValues.Details()) != 0 {
		t.Error("WithDetail modified the template")
	}
	if errors.Is(err, ErrTooFewValues) || !errors.Is(err, ErrTooManyValues) {
		t.Error("errors.Is does not match the template")
	}
	wrapped := ErrInvalidMeta.Wrap(io.ErrUnexpectedEOF)
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) || wrapped.Error() != "tbl: invalid meta element: unexpected EOF" {
		t.Errorf("Wrap() = %v", wrapped)
	}
	if got := err.LogAttrs(); len(got) != 6 || got[0] != "kind" || got[1] != "format" || got[2] != "columns" {
		t.Errorf("LogAttrs() = %v", got)
	}
}

// recordingWriter is a nodeWriter keeping the nodes it receives.
type recordingWriter struct {
	existing bool
	written  []sml.Node
	closed   bool
}

func (w *recordingWriter) WriteNode(n sml.Node) error {
	w.written = append(w.written, n)
	return nil
}

func (w *recordingWriter) Existing() bool { return w.existing }

func (w *recordingWriter) IsClosed() bool { return w.closed }

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

// memoryTransport serves writers resuming the in-memory document doc.
type memoryTransport struct {
	nw  *recordingWriter
	doc *elementReader
}

func (memoryTransport) openReader(string, *options) (nodeReader, reliabletxt.Encoding, error) {
	return nil, 0, errors.New("not implemented")
}

func (m memoryTransport) createWriter(*Header, string, reliabletxt.WriterMode) (*Writer, error) {
	return &Writer{
		nw:       m.nw,
		encoding: reliabletxt.UTF8,
		appendReader: func(int) (nodeReader, error) {
			return m.doc, nil
		},
	}, nil
}

func TestSessionCleanup(t *testing.T) {
	columns := func(names ...string) *sml.Attribute {
		return sml.NewAttribute(names[0], wsv.String(names[1]))
	}
	t.Run("reader", func(t *testing.T) {
		tests := []struct {
			name string
			root *sml.Element
			want error
		}{
			{"not a table", sml.NewElement("Document", columns("A", "B")), ErrNotTable},
			{"empty", sml.NewElement("Table"), ErrColumnsExpected},
			{"other element", sml.NewElement("Table", sml.NewElement("Other")), ErrMetaExpected},
			{"nested meta", sml.NewElement("Table", sml.NewElement("Meta", sml.NewElement("Sub"))), ErrInvalidMeta},
			{"meta only", sml.NewElement("Table", sml.NewElement("Meta")), ErrColumnsExpected},
			{"single column", sml.NewElement("Table", sml.NewAttribute("A")), ErrTooFewColumns},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				er := &elementReader{root: tt.root}
				r, err := newReader(er, reliabletxt.UTF8)
				if !errors.Is(err, tt.want) || r != nil {
					t.Fatalf("newReader() = %v, %v, want %v", r, err, tt.want)
				}
				if !er.closed {
					t.Error("stream left open after failed construction")
				}
				if _, err := FromElement(tt.root, reliabletxt.UTF8); !errors.Is(err, tt.want) {
					t.Errorf("FromElement() error = %v, want %v", err, tt.want)
				}
			})
		}
		er := &elementReader{root: sml.NewElement("Table", columns("A", "B"))}
		r, err := newReader(er, reliabletxt.UTF8)
		if err != nil {
			t.Fatal(err)
		}
		if er.closed {
			t.Error("stream closed after successful construction")
		}
		if err := r.Close(); err != nil || !er.closed {
			t.Errorf("Close() = %v, closed = %t", err, er.closed)
		}
	})

	t.Run("writer", func(t *testing.T) {
		tests := []struct {
			name     string
			existing *sml.Element
			template *Header
			want     error
		}{
			{"column count mismatch", sml.NewElement("Table", columns("A", "B")), MustNewHeader("A", "B", "C"), ErrColumnCountMismatch},
			{"invalid existing header", sml.NewElement("Table", sml.NewElement("Other")), MustNewHeader("A", "B"), ErrMetaExpected},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				m := memoryTransport{nw: &recordingWriter{existing: true}, doc: &elementReader{root: tt.existing}}
				w, err := createWriter(m, tt.template, "mem.tbl", reliabletxt.CreateOrAppend)
				if !errors.Is(err, tt.want) || w != nil {
					t.Fatalf("createWriter() = %v, %v, want %v", w, err, tt.want)
				}
				if !m.nw.closed {
					t.Error("writer stream left open after failed construction")
				}
				if !m.doc.closed {
					t.Error("append reader left open after failed construction")
				}
				if len(m.nw.written) != 0 {
					t.Errorf("wrote %d nodes before failing", len(m.nw.written))
				}
			})
		}
		m := memoryTransport{nw: &recordingWriter{existing: true}, doc: &elementReader{root: sml.NewElement("Table", columns("A", "B"))}}
		w, err := createWriter(m, MustNewHeader("X", "Y"), "mem.tbl", reliabletxt.CreateOrAppend)
		if err != nil {
			t.Fatal(err)
		}
		if m.nw.closed || !m.doc.closed {
			t.Errorf("after createWriter(): writer closed = %t, append reader closed = %t", m.nw.closed, m.doc.closed)
		}
		if got := w.Header().ColumnNames(); !slices.Equal(got, []string{"A", "B"}) {
			t.Errorf("Header().ColumnNames() = %v", got)
		}
		if err := w.Close(); err != nil || !m.nw.closed {
			t.Errorf("Close() = %v, closed = %t", err, m.nw.closed)
		}
	})
}

func TestFormatInvalidDocument(t *testing.T) {
	d := NewDocument(MustNewHeader("A", "B"), NewRow("x", "y"), Row{nil, nil}, Row{})
	if s, err := d.Format(&sml.Options{Indentation: "\t"}); !errors.Is(err, ErrNullFirstValue) || s != "" {
		t.Errorf("Format() = %q, %v, want ErrNullFirstValue", s, err)
	}
	var e *Error
	if err := d.Validate(); !errors.As(err, &e) || e.Details()["row"] != 1 {
		t.Errorf("Validate() = %v, want row 1", err)
	}
	if got := d.AlignedString(); got != "" {
		t.Errorf("AlignedString() = %q, want empty", got)
	}
	if got, want := d.String(), "Table\n\tA B\n\tx y\nEnd"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
