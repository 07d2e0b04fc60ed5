// File handles for streaming ReliableTXT documents.

package reliabletxt

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// WriterMode selects what happens when the destination of a writer exists.
type WriterMode int

const (
	// CreateOrOverwrite truncates an existing file.
	CreateOrOverwrite WriterMode = iota
	// CreateOrAppend keeps an existing file and resumes writing at its end.
	CreateOrAppend
	// CreateNew fails if the file exists.
	CreateNew
)

func (m WriterMode) String() string {
	switch m {
	case CreateOrOverwrite:
		return "create-or-overwrite"
	case CreateOrAppend:
		return "create-or-append"
	case CreateNew:
		return "create-new"
	default:
		return fmt.Sprintf("WriterMode(%d)", int(m))
	}
}

var errClosed = errors.New("reliabletxt: handle is closed")

// ReadHandle is a file opened for reading, positioned after its preamble.
type ReadHandle struct {
	f    *os.File
	enc  Encoding
	size int64
}

// OpenReadHandle opens path and detects its encoding.
func OpenReadHandle(path string) (*ReadHandle, error) {
	f, err := os.Open(path) //nolint:gosec // G304: caller-provided document path
	if err != nil {
		return nil, err
	}
	h, err := newReadHandle(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

func newReadHandle(f *os.File) (*ReadHandle, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	enc, err := readPreamble(f)
	if err != nil {
		return nil, err
	}
	return &ReadHandle{f: f, enc: enc, size: st.Size()}, nil
}

func readPreamble(r io.ReaderAt) (Encoding, error) {
	var head [4]byte
	n, err := r.ReadAt(head[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	return DetectEncoding(head[:n])
}

// Encoding returns the encoding announced by the preamble.
func (h *ReadHandle) Encoding() Encoding {
	return h.enc
}

// Existing is always true, a read handle requires an existing file.
func (h *ReadHandle) Existing() bool {
	return true
}

// Size returns the size of the file when it was opened.
func (h *ReadHandle) Size() int64 {
	return h.size
}

// TextStart returns the offset of the first byte after the preamble.
func (h *ReadHandle) TextStart() int64 {
	return int64(len(h.enc.Preamble()))
}

// ReaderAt gives positional access to the raw bytes.
func (h *ReadHandle) ReaderAt() io.ReaderAt {
	return h.f
}

// IsClosed reports whether Close was called.
func (h *ReadHandle) IsClosed() bool {
	return h.f == nil
}

// Close releases the file. Calling it more than once is a no-op.
func (h *ReadHandle) Close() error {
	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}

// WriteHandle is a file opened for writing encoded text.
//
// For an existing file opened with CreateOrAppend, nothing is written until
// the caller truncates it at the position where writing resumes.
type WriteHandle struct {
	f        *os.File
	w        *bufio.Writer
	enc      Encoding
	existing bool
	size     int64
}

// OpenWriteHandle opens path according to mode.
//
// A new file gets the preamble of enc. When CreateOrAppend finds a non-empty
// file, the file's own encoding replaces enc and Existing reports true.
func OpenWriteHandle(path string, mode WriterMode, enc Encoding) (*WriteHandle, error) {
	flags := os.O_RDWR | os.O_CREATE
	switch mode {
	case CreateOrOverwrite:
		flags |= os.O_TRUNC
	case CreateNew:
		flags |= os.O_EXCL
	case CreateOrAppend:
	default:
		return nil, fmt.Errorf("reliabletxt: unsupported writer mode %s", mode)
	}
	f, err := os.OpenFile(path, flags, 0o644) //nolint:gosec // G302,G304: caller-provided document path
	if err != nil {
		return nil, err
	}
	h := &WriteHandle{f: f, w: bufio.NewWriter(f), enc: enc}
	if err := h.init(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

func (h *WriteHandle) init() error {
	st, err := h.f.Stat()
	if err != nil {
		return err
	}
	h.size = st.Size()
	if h.size == 0 {
		_, err := h.w.Write(h.enc.Preamble())
		return err
	}
	h.existing = true
	h.enc, err = readPreamble(h.f)
	return err
}

// Encoding returns the encoding text is written in.
func (h *WriteHandle) Encoding() Encoding {
	return h.enc
}

// Existing reports whether the file had content when it was opened.
func (h *WriteHandle) Existing() bool {
	return h.existing
}

// Size returns the size of the file when it was opened.
func (h *WriteHandle) Size() int64 {
	return h.size
}

// TextStart returns the offset of the first byte after the preamble.
func (h *WriteHandle) TextStart() int64 {
	return int64(len(h.enc.Preamble()))
}

// ReaderAt gives positional access to the bytes present when the file was
// opened.
func (h *WriteHandle) ReaderAt() io.ReaderAt {
	return h.f
}

// TruncateAt drops everything from offset on and moves the write position
// there.
func (h *WriteHandle) TruncateAt(offset int64) error {
	if h.f == nil {
		return errClosed
	}
	if err := h.w.Flush(); err != nil {
		return err
	}
	if err := h.f.Truncate(offset); err != nil {
		return err
	}
	if _, err := h.f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	h.w.Reset(h.f)
	return nil
}

// WriteText encodes s and writes it at the current position.
func (h *WriteHandle) WriteText(s string) error {
	if h.f == nil {
		return errClosed
	}
	b, err := EncodeText(s, h.enc)
	if err != nil {
		return err
	}
	_, err = h.w.Write(b)
	return err
}

// WriteBytes writes raw bytes at the current position.
func (h *WriteHandle) WriteBytes(b []byte) error {
	if h.f == nil {
		return errClosed
	}
	_, err := h.w.Write(b)
	return err
}

// IsClosed reports whether Close was called.
func (h *WriteHandle) IsClosed() bool {
	return h.f == nil
}

// Close flushes buffered data and releases the file. Calling it more than
// once is a no-op.
func (h *WriteHandle) Close() error {
	if h.f == nil {
		return nil
	}
	err := errors.Join(h.w.Flush(), h.f.Close())
	h.f = nil
	return err
}

// LastLine returns the last line of the encoded text stored in r between
// start and end together with the offset of its first byte. start must be
// the end of the preamble. Only the bytes of that line are read.
func LastLine(r io.ReaderAt, start, end int64, enc Encoding) (string, int64, error) {
	unit := int64(enc.CodeUnitSize())
	if (end-start)%unit != 0 {
		return "", 0, errMisaligned
	}
	lf := enc.lineFeed()
	buf := make([]byte, 4096)
	var tail []byte
	for pos := end; pos > start; {
		n := min(int64(len(buf)), pos-start)
		chunk := buf[:n]
		if _, err := r.ReadAt(chunk, pos-n); err != nil && !errors.Is(err, io.EOF) {
			return "", 0, err
		}
		for i := n - unit; i >= 0; i -= unit {
			if bytes.Equal(chunk[i:i+unit], lf) {
				line := append(slices.Clone(chunk[i+unit:]), tail...)
				text, err := decodeText(line, enc)
				return text, pos - n + i + unit, err
			}
		}
		tail = append(slices.Clone(chunk), tail...)
		pos -= n
	}
	text, err := decodeText(tail, enc)
	return text, start, err
}

// LastNonEmptyLine is like LastLine but skips lines for which empty returns
// true. It returns io.EOF when every line is empty.
func LastNonEmptyLine(r io.ReaderAt, start, end int64, enc Encoding, empty func(string) bool) (string, int64, error) {
	unit := int64(enc.CodeUnitSize())
	for {
		line, offset, err := LastLine(r, start, end, enc)
		if err != nil {
			return "", 0, err
		}
		if !empty(line) {
			return line, offset, nil
		}
		if offset == start {
			return "", 0, io.EOF
		}
		end = offset - unit
	}
}
