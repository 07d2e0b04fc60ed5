// Node stream capabilities shared by the text and binary transports.

package tbl

import (
	"io"

	"github.com/maruel/tbl/binsml"
	"github.com/maruel/tbl/reliabletxt"
	"github.com/maruel/tbl/sml"
)

// nodeReader is implemented by *sml.StreamReader, *binsml.StreamReader and
// elementReader.
type nodeReader interface {
	Root() *sml.Element
	ReadNode() (sml.Node, error)
	Existing() bool
	IsClosed() bool
	Close() error
}

// nodeWriter is implemented by *sml.StreamWriter and *binsml.StreamWriter.
type nodeWriter interface {
	WriteNode(n sml.Node) error
	Existing() bool
	IsClosed() bool
	Close() error
}

// transport opens node streams for one document format.
type transport interface {
	openReader(path string, o *options) (nodeReader, reliabletxt.Encoding, error)
	createWriter(template *Header, path string, mode reliabletxt.WriterMode) (*Writer, error)
}

type textTransport struct{}

func (textTransport) openReader(path string, o *options) (nodeReader, reliabletxt.Encoding, error) {
	r, err := sml.Open(path, o.chunkSize)
	if err != nil {
		return nil, 0, err
	}
	return r, r.Encoding(), nil
}

func (textTransport) createWriter(template *Header, path string, mode reliabletxt.WriterMode) (*Writer, error) {
	doc := sml.NewDocument(sml.NewElement(rootName))
	doc.Encoding = template.Encoding()
	sw, err := sml.Create(doc, path, mode)
	if err != nil {
		return nil, err
	}
	return &Writer{
		nw:       sw,
		encoding: sw.Encoding(),
		appendReader: func(chunkSize int) (nodeReader, error) {
			r, err := sw.AppendReader(chunkSize)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	}, nil
}

type binaryTransport struct{}

func (binaryTransport) openReader(path string, o *options) (nodeReader, reliabletxt.Encoding, error) {
	r, err := binsml.Open(path, o.chunkSize)
	if err != nil {
		return nil, 0, err
	}
	return r, reliabletxt.UTF8, nil
}

func (binaryTransport) createWriter(_ *Header, path string, mode reliabletxt.WriterMode) (*Writer, error) {
	bw, err := binsml.Create(sml.NewElement(rootName), path, mode)
	if err != nil {
		return nil, err
	}
	return &Writer{
		nw:       bw,
		encoding: reliabletxt.UTF8,
		appendReader: func(chunkSize int) (nodeReader, error) {
			r, err := bw.AppendReader(chunkSize)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	}, nil
}

// elementReader streams the children of an in-memory element.
type elementReader struct {
	root   *sml.Element
	next   int
	closed bool
}

func (r *elementReader) Root() *sml.Element {
	return r.root
}

func (r *elementReader) ReadNode() (sml.Node, error) {
	if r.closed {
		return nil, sml.ErrClosed
	}
	if r.next == len(r.root.Nodes) {
		return nil, io.EOF
	}
	r.next++
	return r.root.Nodes[r.next-1], nil
}

func (r *elementReader) Existing() bool {
	return true
}

func (r *elementReader) IsClosed() bool {
	return r.closed
}

func (r *elementReader) Close() error {
	r.closed = true
	return nil
}

// Option configures a reader.
type Option func(*options)

type options struct {
	chunkSize int
}

// WithChunkSize sets the size of the read buffer.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

func newOptions(opts []Option) *options {
	o := &options{chunkSize: sml.DefaultChunkSize}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
