// Streaming node reader and writer over ReliableTXT files.

package sml

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/maruel/tbl/reliabletxt"
	"github.com/maruel/tbl/wsv"
)

// DefaultChunkSize is the read buffer size used when none is given.
const DefaultChunkSize = 4096

var (
	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = errors.New("sml: stream is closed")

	errNotAppending = errors.New("sml: writer did not resume an existing document")
	errInvalidUTF8  = errors.New("invalid UTF-8 data")
)

// StreamReader reads the children of the root element one node at a time.
//
// Only the bytes before the line closing the root element are read; that line
// is located from the end of the file when the reader is opened.
type StreamReader struct {
	root       *Element
	endKeyword *string
	encoding   reliabletxt.Encoding
	existing   bool
	r          *bufio.Reader
	closer     io.Closer
	lineNo     int
	done       bool
	closed     bool
}

// Open opens a document for streaming. chunkSize is the read buffer size,
// DefaultChunkSize when 0.
func Open(path string, chunkSize int) (*StreamReader, error) {
	h, err := reliabletxt.OpenReadHandle(path)
	if err != nil {
		return nil, err
	}
	r, err := newStreamReader(h.ReaderAt(), h.TextStart(), h.Size(), h.Encoding(), chunkSize)
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = h
	r.existing = h.Existing()
	return r, nil
}

func newStreamReader(ra io.ReaderAt, start, size int64, enc reliabletxt.Encoding, chunkSize int) (*StreamReader, error) {
	text, offset, err := reliabletxt.LastNonEmptyLine(ra, start, size, enc, isEmptyLine)
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Line: 1, Err: errNoRoot}
	}
	if err != nil {
		return nil, err
	}
	kw, err := endKeywordOf(text, 0)
	if err != nil {
		return nil, err
	}
	return newSectionReader(ra, start, offset, enc, kw, chunkSize)
}

// newSectionReader reads nodes from the text between start and end, the
// offset of the line closing the root element.
func newSectionReader(ra io.ReaderAt, start, end int64, enc reliabletxt.Encoding, endKeyword *string, chunkSize int) (*StreamReader, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	section := io.NewSectionReader(ra, start, end-start)
	r := &StreamReader{
		endKeyword: endKeyword,
		encoding:   enc,
		r:          bufio.NewReaderSize(reliabletxt.NewDecodingReader(section, enc), chunkSize),
	}
	for {
		kind, values, err := r.next()
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Line: r.lineNo, Err: errNoRoot}
		}
		if err != nil {
			return nil, err
		}
		switch kind {
		case lineEmpty:
			continue
		case lineElementStart:
			r.root = &Element{Name: *values[0]}
			return r, nil
		default:
			return nil, &ParseError{Line: r.lineNo, Err: errNoRoot}
		}
	}
}

// next returns the next line. It returns io.EOF at the end of the section.
func (r *StreamReader) next() (lineKind, []*string, error) {
	line, err := r.r.ReadString('\n')
	if errors.Is(err, io.EOF) && line == "" {
		return 0, nil, io.EOF
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, nil, err
	}
	r.lineNo++
	line = strings.TrimSuffix(line, "\n")
	if !utf8.ValidString(line) {
		return 0, nil, &ParseError{Line: r.lineNo, Err: errInvalidUTF8}
	}
	return parseLine(line, r.lineNo, r.endKeyword)
}

// Root returns the root element. Its children are not loaded.
func (r *StreamReader) Root() *Element {
	return r.root
}

// EndKeyword returns the keyword closing elements, nil for "-".
func (r *StreamReader) EndKeyword() *string {
	return r.endKeyword
}

// Encoding returns the encoding of the underlying file.
func (r *StreamReader) Encoding() reliabletxt.Encoding {
	return r.encoding
}

// Existing reports whether the underlying file existed, always true unless
// the reader resumes a writer that created its file.
func (r *StreamReader) Existing() bool {
	return r.existing
}

// ReadNode returns the next child of the root element, including all of its
// descendants for an element. It returns io.EOF once every child was read,
// on every call.
func (r *StreamReader) ReadNode() (Node, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.done {
		return nil, io.EOF
	}
	for {
		kind, values, err := r.next()
		if errors.Is(err, io.EOF) {
			r.done = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		switch kind {
		case lineEmpty:
			continue
		case lineAttribute:
			return newAttribute(values), nil
		case lineElementStart:
			e := &Element{Name: *values[0]}
			if err := r.readChildren(e); err != nil {
				return nil, err
			}
			return e, nil
		default:
			return nil, &ParseError{Line: r.lineNo, Err: errMultipleRoots}
		}
	}
}

func (r *StreamReader) readChildren(e *Element) error {
	for {
		kind, values, err := r.next()
		if errors.Is(err, io.EOF) {
			return &ParseError{Line: r.lineNo, Err: fmt.Errorf("%w: %q", errNotClosed, e.Name)}
		}
		if err != nil {
			return err
		}
		switch kind {
		case lineEmpty:
		case lineAttribute:
			e.Add(newAttribute(values))
		case lineElementStart:
			c := &Element{Name: *values[0]}
			if err := r.readChildren(c); err != nil {
				return err
			}
			e.Add(c)
		case lineElementEnd:
			return nil
		}
	}
}

// IsClosed reports whether Close was called.
func (r *StreamReader) IsClosed() bool {
	return r.closed
}

// Close releases the file. Calling it more than once is a no-op. A reader
// obtained from StreamWriter.AppendReader does not own the file.
func (r *StreamReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// StreamWriter writes the children of the root element one node at a time.
type StreamWriter struct {
	h          *reliabletxt.WriteHandle
	indent     string
	endKeyword *string
	// resumeAt is the offset of the line closing the root element of an
	// existing document, -1 once writing resumed or for a new document.
	resumeAt int64
	closed   bool
}

// Create opens path for writing the children of template.Root.
//
// For a new or overwritten file, the root element line is written using
// template's encoding and end keyword. When mode is CreateOrAppend and the
// file has content, Existing reports true and the file is left untouched
// until the first node is written; the existing end keyword and encoding are
// kept. Use AppendReader to inspect the existing content first.
func Create(template *Document, path string, mode reliabletxt.WriterMode) (*StreamWriter, error) {
	h, err := reliabletxt.OpenWriteHandle(path, mode, template.Encoding)
	if err != nil {
		return nil, err
	}
	w := &StreamWriter{h: h, indent: "\t", endKeyword: template.EndKeyword, resumeAt: -1}
	if err := w.init(template); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

func (w *StreamWriter) init(template *Document) error {
	if w.h.Existing() {
		text, offset, err := reliabletxt.LastNonEmptyLine(w.h.ReaderAt(), w.h.TextStart(), w.h.Size(), w.h.Encoding(), isEmptyLine)
		if errors.Is(err, io.EOF) {
			return &ParseError{Line: 1, Err: errNoRoot}
		}
		if err != nil {
			return err
		}
		if w.endKeyword, err = endKeywordOf(text, 0); err != nil {
			return err
		}
		if w.endKeyword == nil {
			w.indent = ""
		}
		w.resumeAt = offset
		slog.Debug("sml: resuming existing document", "offset", offset, "encoding", w.h.Encoding())
		return nil
	}
	if w.endKeyword != nil && *w.endKeyword == "" {
		return errEmptyEndKeyword
	}
	return w.h.WriteText(wsv.SerializeValue(&template.Root.Name) + "\n")
}

// Existing reports whether the writer resumes an existing document.
func (w *StreamWriter) Existing() bool {
	return w.h.Existing()
}

// Encoding returns the encoding text is written in.
func (w *StreamWriter) Encoding() reliabletxt.Encoding {
	return w.h.Encoding()
}

// AppendReader returns a reader over the existing content of the document.
// The reader shares the writer's file and must be fully used before the
// first WriteNode call; closing it does not close the writer.
func (w *StreamWriter) AppendReader(chunkSize int) (*StreamReader, error) {
	if w.closed {
		return nil, ErrClosed
	}
	if !w.h.Existing() || w.resumeAt < 0 {
		return nil, errNotAppending
	}
	r, err := newSectionReader(w.h.ReaderAt(), w.h.TextStart(), w.resumeAt, w.h.Encoding(), w.endKeyword, chunkSize)
	if err != nil {
		return nil, err
	}
	r.existing = true
	return r, nil
}

// WriteNode writes a child of the root element.
func (w *StreamWriter) WriteNode(n Node) error {
	if w.closed {
		return ErrClosed
	}
	if err := validateNode(n); err != nil {
		return err
	}
	if w.resumeAt >= 0 {
		if err := w.h.TruncateAt(w.resumeAt); err != nil {
			return err
		}
		w.resumeAt = -1
	}
	r := &renderer{indent: w.indent, end: wsv.SerializeValue(w.endKeyword), between: " "}
	r.node(n, 1)
	return w.h.WriteText(r.sb.String())
}

func validateNode(n Node) error {
	switch n := n.(type) {
	case *Attribute:
		return n.Validate()
	case *Element:
		for _, c := range n.Nodes {
			if err := validateNode(c); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("sml: unsupported node %T", n)
	}
}

// IsClosed reports whether Close was called.
func (w *StreamWriter) IsClosed() bool {
	return w.closed
}

// Close writes the line closing the root element and releases the file. An
// existing document to which nothing was written is left unchanged. Calling
// Close more than once is a no-op.
func (w *StreamWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var err error
	if w.resumeAt < 0 {
		err = w.h.WriteText(wsv.SerializeValue(w.endKeyword))
	}
	return errors.Join(err, w.h.Close())
}
