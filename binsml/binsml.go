// Package binsml stores SML node trees in a compact binary form.
//
// A file starts with the three byte preamble "BS1" followed by a CBOR
// sequence (RFC 8742) of events, one per SML line: element start, element end
// and attribute. Every event is a three item array [kind, name, values]
// encoded with Core Deterministic Encoding, so the event closing the root
// element is always the same four bytes at the end of the file.
//
// This layout is specific to this module. It is not the Stenway BinarySML
// format, and other SML or TBL tools cannot read these files.
package binsml

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/maruel/tbl/sml"
)

// Preamble starts every binary SML document.
const Preamble = "BS1"

var (
	// ErrNoPreamble is returned for data that does not start with Preamble.
	ErrNoPreamble = errors.New("binsml: document does not start with the BS1 preamble")

	errNoRoot        = errors.New("root element expected")
	errMultipleRoots = errors.New("only one root element allowed")
	errNotClosed     = errors.New("element not closed")
	errInvalidEvent  = errors.New("invalid event")
)

type kind uint8

const (
	kindElementStart kind = iota + 1
	kindElementEnd
	kindAttribute
)

// event is one line of an SML document.
type event struct {
	_      struct{} `cbor:",toarray"`
	Kind   kind
	Name   *string
	Values []*string
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
	// endEvent is the encoded element end event.
	endEvent []byte
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("binsml: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		panic("binsml: CBOR decoder initialization failed: " + err.Error())
	}
	if endEvent, err = encMode.Marshal(event{Kind: kindElementEnd}); err != nil {
		panic("binsml: " + err.Error())
	}
}

func (e *event) validate() error {
	switch e.Kind {
	case kindElementStart:
		if e.Name == nil || len(e.Values) != 0 {
			return errInvalidEvent
		}
	case kindElementEnd:
		if e.Name != nil || len(e.Values) != 0 {
			return errInvalidEvent
		}
	case kindAttribute:
		if e.Name == nil || len(e.Values) == 0 {
			return errInvalidEvent
		}
	default:
		return fmt.Errorf("%w: kind %d", errInvalidEvent, e.Kind)
	}
	return nil
}

// encoder writes nodes as events.
type encoder struct {
	enc *cbor.Encoder
}

func newEncoder(w io.Writer) *encoder {
	return &encoder{enc: encMode.NewEncoder(w)}
}

func (e *encoder) node(n sml.Node) error {
	switch n := n.(type) {
	case *sml.Element:
		return e.element(n)
	case *sml.Attribute:
		if err := n.Validate(); err != nil {
			return err
		}
		return e.enc.Encode(event{Kind: kindAttribute, Name: &n.Name, Values: n.Values})
	default:
		return fmt.Errorf("binsml: unsupported node %T", n)
	}
}

func (e *encoder) element(el *sml.Element) error {
	if err := e.enc.Encode(event{Kind: kindElementStart, Name: &el.Name}); err != nil {
		return err
	}
	for _, n := range el.Nodes {
		if err := e.node(n); err != nil {
			return err
		}
	}
	return e.enc.Encode(event{Kind: kindElementEnd})
}

// decoder reads events and tracks their index for error reporting.
type decoder struct {
	dec   *cbor.Decoder
	index int
}

func newDecoder(r io.Reader) *decoder {
	return &decoder{dec: decMode.NewDecoder(r)}
}

// next returns the next event, or io.EOF at the end of the data.
func (d *decoder) next() (*event, error) {
	var e event
	if err := d.dec.Decode(&e); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &DecodeError{Event: d.index, Err: err}
	}
	d.index++
	if err := e.validate(); err != nil {
		return nil, &DecodeError{Event: d.index - 1, Err: err}
	}
	return &e, nil
}

// children reads the nodes of el up to its end event.
func (d *decoder) children(el *sml.Element) error {
	for {
		e, err := d.next()
		if errors.Is(err, io.EOF) {
			return &DecodeError{Event: d.index, Err: fmt.Errorf("%w: %q", errNotClosed, el.Name)}
		}
		if err != nil {
			return err
		}
		switch e.Kind {
		case kindElementStart:
			c := sml.NewElement(*e.Name)
			if err := d.children(c); err != nil {
				return err
			}
			el.Add(c)
		case kindAttribute:
			el.Add(sml.NewAttribute(*e.Name, e.Values...))
		case kindElementEnd:
			return nil
		}
	}
}

// DecodeError reports the index of the event that failed to decode.
type DecodeError struct {
	Event int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("binsml: event %d: %v", e.Event, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode returns the binary form of the tree rooted at root.
func Encode(root *sml.Element) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Preamble)
	if err := newEncoder(&buf).element(root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a whole binary document.
func Decode(data []byte) (*sml.Element, error) {
	if !bytes.HasPrefix(data, []byte(Preamble)) {
		return nil, ErrNoPreamble
	}
	d := newDecoder(bytes.NewReader(data[len(Preamble):]))
	e, err := d.next()
	if errors.Is(err, io.EOF) {
		return nil, &DecodeError{Err: errNoRoot}
	}
	if err != nil {
		return nil, err
	}
	if e.Kind != kindElementStart {
		return nil, &DecodeError{Err: errNoRoot}
	}
	root := sml.NewElement(*e.Name)
	if err := d.children(root); err != nil {
		return nil, err
	}
	if _, err := d.next(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = &DecodeError{Event: d.index - 1, Err: errMultipleRoots}
		}
		return nil, err
	}
	return root, nil
}
