// Package reliabletxt handles ReliableTXT text transport: every document starts
// with a preamble identifying one of four Unicode encodings, and the line
// separator is a single line feed.
package reliabletxt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

var (
	// ErrNoPreamble is returned when a document does not start with a
	// ReliableTXT preamble.
	ErrNoPreamble = errors.New("reliabletxt: document does not have a ReliableTXT preamble")

	errInvalidUTF8 = errors.New("reliabletxt: invalid UTF-8 data")
	errMisaligned  = errors.New("reliabletxt: data length is not a multiple of the code unit size")
)

// Encoding is one of the text encodings a ReliableTXT document can use.
type Encoding int

const (
	// UTF8 is UTF-8 with the EF BB BF preamble.
	UTF8 Encoding = iota
	// UTF16 is big endian UTF-16 with the FE FF preamble.
	UTF16
	// UTF16Reverse is little endian UTF-16 with the FF FE preamble.
	UTF16Reverse
	// UTF32 is big endian UTF-32 with the 00 00 FE FF preamble.
	UTF32
)

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf-8"
	case UTF16:
		return "utf-16"
	case UTF16Reverse:
		return "utf-16-reverse"
	case UTF32:
		return "utf-32"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding parses the names returned by Encoding.String, plus a few
// common aliases.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "utf-8", "utf8":
		return UTF8, nil
	case "utf-16", "utf16", "utf-16be":
		return UTF16, nil
	case "utf-16-reverse", "utf-16le", "utf16le":
		return UTF16Reverse, nil
	case "utf-32", "utf32", "utf-32be":
		return UTF32, nil
	}
	return 0, fmt.Errorf("reliabletxt: unknown encoding %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (e Encoding) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Encoding) UnmarshalText(b []byte) error {
	v, err := ParseEncoding(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Preamble returns the byte order mark written before the text.
func (e Encoding) Preamble() []byte {
	switch e {
	case UTF16:
		return []byte{0xFE, 0xFF}
	case UTF16Reverse:
		return []byte{0xFF, 0xFE}
	case UTF32:
		return []byte{0x00, 0x00, 0xFE, 0xFF}
	default:
		return []byte{0xEF, 0xBB, 0xBF}
	}
}

// CodeUnitSize is the size in bytes of one code unit.
func (e Encoding) CodeUnitSize() int {
	switch e {
	case UTF16, UTF16Reverse:
		return 2
	case UTF32:
		return 4
	default:
		return 1
	}
}

// lineFeed is the encoded form of '\n'.
func (e Encoding) lineFeed() []byte {
	switch e {
	case UTF16:
		return []byte{0x00, 0x0A}
	case UTF16Reverse:
		return []byte{0x0A, 0x00}
	case UTF32:
		return []byte{0x00, 0x00, 0x00, 0x0A}
	default:
		return []byte{0x0A}
	}
}

func (e Encoding) codec() encoding.Encoding {
	switch e {
	case UTF16:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case UTF16Reverse:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case UTF32:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
	default:
		return nil
	}
}

// DetectEncoding returns the encoding announced by the preamble of b.
func DetectEncoding(b []byte) (Encoding, error) {
	for _, e := range []Encoding{UTF32, UTF8, UTF16, UTF16Reverse} {
		if bytes.HasPrefix(b, e.Preamble()) {
			return e, nil
		}
	}
	return 0, ErrNoPreamble
}

// Encode returns the preamble followed by text in the given encoding.
func Encode(text string, enc Encoding) ([]byte, error) {
	body, err := EncodeText(text, enc)
	if err != nil {
		return nil, err
	}
	return append(enc.Preamble(), body...), nil
}

// EncodeText encodes text without a preamble.
func EncodeText(text string, enc Encoding) ([]byte, error) {
	c := enc.codec()
	if c == nil {
		if !utf8.ValidString(text) {
			return nil, errInvalidUTF8
		}
		return []byte(text), nil
	}
	b, err := c.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("reliabletxt: failed to encode %s: %w", enc, err)
	}
	return b, nil
}

// Decode detects the encoding of b and returns its text without the preamble.
func Decode(b []byte) (string, Encoding, error) {
	enc, err := DetectEncoding(b)
	if err != nil {
		return "", 0, err
	}
	text, err := decodeText(b[len(enc.Preamble()):], enc)
	if err != nil {
		return "", 0, err
	}
	return text, enc, nil
}

func decodeText(b []byte, enc Encoding) (string, error) {
	if len(b)%enc.CodeUnitSize() != 0 {
		return "", errMisaligned
	}
	c := enc.codec()
	if c == nil {
		if !utf8.Valid(b) {
			return "", errInvalidUTF8
		}
		return string(b), nil
	}
	out, err := c.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("reliabletxt: failed to decode %s: %w", enc, err)
	}
	return string(out), nil
}

// NewDecodingReader returns a reader producing UTF-8 text from r, which must
// be positioned after the preamble.
func NewDecodingReader(r io.Reader, enc Encoding) io.Reader {
	c := enc.codec()
	if c == nil {
		return r
	}
	return transform.NewReader(r, c.NewDecoder())
}
