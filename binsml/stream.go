// Streaming node reader and writer over binary files.

package binsml

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/maruel/tbl/reliabletxt"
	"github.com/maruel/tbl/sml"
)

var (
	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = errors.New("binsml: stream is closed")

	errNotAppending = errors.New("binsml: writer did not resume an existing document")
	errNoRootEnd    = errors.New("document does not end with the root element end event")
)

// StreamReader reads the children of the root element one node at a time.
type StreamReader struct {
	root     *sml.Element
	d        *decoder
	closer   io.Closer
	existing bool
	done     bool
	closed   bool
}

// Open opens a binary document for streaming. chunkSize is the read buffer
// size, sml.DefaultChunkSize when 0.
func Open(path string, chunkSize int) (*StreamReader, error) {
	f, err := os.Open(path) //nolint:gosec // G304: caller-provided document path
	if err != nil {
		return nil, err
	}
	r, err := openFile(f, chunkSize)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	r.existing = true
	return r, nil
}

func openFile(f *os.File, chunkSize int) (*StreamReader, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	end, err := rootEndOffset(f, st.Size())
	if err != nil {
		return nil, err
	}
	return newSectionReader(f, end, chunkSize)
}

// rootEndOffset checks the preamble and returns the offset of the event
// closing the root element.
func rootEndOffset(ra io.ReaderAt, size int64) (int64, error) {
	p := make([]byte, len(Preamble))
	if _, err := ra.ReadAt(p, 0); err != nil || string(p) != Preamble {
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		return 0, ErrNoPreamble
	}
	end := size - int64(len(endEvent))
	if end <= int64(len(Preamble)) {
		return 0, &DecodeError{Err: errNoRoot}
	}
	tail := make([]byte, len(endEvent))
	if _, err := ra.ReadAt(tail, end); err != nil {
		return 0, err
	}
	if !bytes.Equal(tail, endEvent) {
		return 0, &DecodeError{Err: errNoRootEnd}
	}
	return end, nil
}

// newSectionReader reads events between the preamble and end.
func newSectionReader(ra io.ReaderAt, end int64, chunkSize int) (*StreamReader, error) {
	if chunkSize <= 0 {
		chunkSize = sml.DefaultChunkSize
	}
	start := int64(len(Preamble))
	section := io.NewSectionReader(ra, start, end-start)
	r := &StreamReader{d: newDecoder(bufio.NewReaderSize(section, chunkSize))}
	e, err := r.d.next()
	if errors.Is(err, io.EOF) {
		return nil, &DecodeError{Err: errNoRoot}
	}
	if err != nil {
		return nil, err
	}
	if e.Kind != kindElementStart {
		return nil, &DecodeError{Err: errNoRoot}
	}
	r.root = sml.NewElement(*e.Name)
	return r, nil
}

// Root returns the root element. Its children are not loaded.
func (r *StreamReader) Root() *sml.Element {
	return r.root
}

// Existing reports whether the underlying file existed.
func (r *StreamReader) Existing() bool {
	return r.existing
}

// ReadNode returns the next child of the root element. It returns io.EOF
// once every child was read, on every call.
func (r *StreamReader) ReadNode() (sml.Node, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.done {
		return nil, io.EOF
	}
	e, err := r.d.next()
	if errors.Is(err, io.EOF) {
		r.done = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	switch e.Kind {
	case kindAttribute:
		return sml.NewAttribute(*e.Name, e.Values...), nil
	case kindElementStart:
		el := sml.NewElement(*e.Name)
		if err := r.d.children(el); err != nil {
			return nil, err
		}
		return el, nil
	default:
		return nil, &DecodeError{Event: r.d.index - 1, Err: errMultipleRoots}
	}
}

// IsClosed reports whether Close was called.
func (r *StreamReader) IsClosed() bool {
	return r.closed
}

// Close releases the file. Calling it more than once is a no-op.
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
	f        *os.File
	w        *bufio.Writer
	enc      *encoder
	existing bool
	// resumeAt is the offset of the root end event of an existing document,
	// -1 once writing resumed or for a new document.
	resumeAt int64
	closed   bool
}

// Create opens path for writing the children of root. The semantics of mode
// match sml.Create: an existing document opened with CreateOrAppend is left
// untouched until the first node is written.
func Create(root *sml.Element, path string, mode reliabletxt.WriterMode) (*StreamWriter, error) {
	flags := os.O_RDWR | os.O_CREATE
	switch mode {
	case reliabletxt.CreateOrOverwrite:
		flags |= os.O_TRUNC
	case reliabletxt.CreateNew:
		flags |= os.O_EXCL
	case reliabletxt.CreateOrAppend:
	default:
		return nil, fmt.Errorf("binsml: unsupported writer mode %s", mode)
	}
	f, err := os.OpenFile(path, flags, 0o644) //nolint:gosec // G302,G304: caller-provided document path
	if err != nil {
		return nil, err
	}
	w := &StreamWriter{f: f, w: bufio.NewWriter(f), resumeAt: -1}
	w.enc = newEncoder(w.w)
	if err := w.init(root); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

func (w *StreamWriter) init(root *sml.Element) error {
	st, err := w.f.Stat()
	if err != nil {
		return err
	}
	if st.Size() == 0 {
		if _, err := w.w.WriteString(Preamble); err != nil {
			return err
		}
		return w.enc.enc.Encode(event{Kind: kindElementStart, Name: &root.Name})
	}
	w.existing = true
	if w.resumeAt, err = rootEndOffset(w.f, st.Size()); err != nil {
		return err
	}
	slog.Debug("binsml: resuming existing document", "offset", w.resumeAt)
	return nil
}

// Existing reports whether the writer resumes an existing document.
func (w *StreamWriter) Existing() bool {
	return w.existing
}

// AppendReader returns a reader over the existing content of the document.
// It must be fully used before the first WriteNode call; closing it does not
// close the writer.
func (w *StreamWriter) AppendReader(chunkSize int) (*StreamReader, error) {
	if w.closed {
		return nil, ErrClosed
	}
	if !w.existing || w.resumeAt < 0 {
		return nil, errNotAppending
	}
	r, err := newSectionReader(w.f, w.resumeAt, chunkSize)
	if err != nil {
		return nil, err
	}
	r.existing = true
	return r, nil
}

// WriteNode writes a child of the root element.
func (w *StreamWriter) WriteNode(n sml.Node) error {
	if w.closed {
		return ErrClosed
	}
	// An invalid node must not leave a partial event in the file.
	var buf bytes.Buffer
	if err := newEncoder(&buf).node(n); err != nil {
		return err
	}
	if w.resumeAt >= 0 {
		if err := w.f.Truncate(w.resumeAt); err != nil {
			return err
		}
		if _, err := w.f.Seek(w.resumeAt, io.SeekStart); err != nil {
			return err
		}
		w.resumeAt = -1
	}
	_, err := w.w.Write(buf.Bytes())
	return err
}

// IsClosed reports whether Close was called.
func (w *StreamWriter) IsClosed() bool {
	return w.closed
}

// Close writes the root end event and releases the file. An existing
// document to which nothing was written is left unchanged. Calling Close more
// than once is a no-op.
func (w *StreamWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var err error
	if w.resumeAt < 0 {
		_, err = w.w.Write(endEvent)
		err = errors.Join(err, w.w.Flush())
	}
	return errors.Join(err, w.f.Close())
}
