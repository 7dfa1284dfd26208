package core

// streaming.go provides the readers an input file passes through before it is
// split into lines:
//
//   - CountingReader: counts raw bytes for the run summary
//   - BOMSkippingReader: drops a leading UTF-8 byte order mark
//   - Latin-1 decoding (the default, curator files come from spreadsheets)
//     or UTF8Sanitizer for files declared as UTF-8
//
// Use WrapInput to apply them in the right order.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding is the character set of an input file.
type Encoding string

const (
	EncodingLatin1 Encoding = "latin1"
	EncodingUTF8   Encoding = "utf-8"
)

// ParseEncoding accepts the common spellings of the supported encodings.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return EncodingLatin1, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	default:
		return "", fmt.Errorf("unsupported input encoding %q", s)
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader removes a UTF-8 BOM from the start of the stream.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		if head, err := b.r.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = b.r.Discard(len(utf8BOM))
		}
	}
	return b.r.Read(p)
}

// UTF8Sanitizer replaces every byte that is not part of a valid UTF-8
// sequence with '?', keeping the stream valid UTF-8 without buffering it.
type UTF8Sanitizer struct {
	r       *bufio.Reader
	pending []byte // encoded rune bytes that did not fit into the last p
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{r: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(s.pending) > 0 {
			c := copy(p[n:], s.pending)
			s.pending = s.pending[c:]
			n += c
			continue
		}

		r, size, err := s.r.ReadRune()
		if err != nil {
			if n > 0 && err == io.EOF {
				return n, nil
			}
			return n, err
		}
		if r == utf8.RuneError && size == 1 {
			p[n] = '?'
			n++
			continue
		}

		var enc [utf8.UTFMax]byte
		m := utf8.EncodeRune(enc[:], r)
		c := copy(p[n:], enc[:m])
		n += c
		if c < m {
			s.pending = append(s.pending[:0], enc[c:m]...)
		}
	}
	return n, nil
}

// CountingReader counts the bytes read through it.
type CountingReader struct {
	r         io.Reader
	BytesRead int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// InputReader is an input file after counting, BOM removal and decoding.
type InputReader struct {
	io.Reader
	raw *CountingReader
}

// BytesRead returns the number of raw file bytes consumed so far.
func (in *InputReader) BytesRead() int64 { return in.raw.BytesRead }

// WrapInput prepares r for line splitting. Bytes are counted before any
// transformation; the BOM is dropped before decoding.
func WrapInput(r io.Reader, enc Encoding) *InputReader {
	raw := NewCountingReader(r)
	var decoded io.Reader = NewBOMSkippingReader(raw)
	if enc == EncodingUTF8 {
		decoded = NewUTF8Sanitizer(decoded)
	} else {
		decoded = charmap.ISO8859_1.NewDecoder().Reader(decoded)
	}
	return &InputReader{Reader: decoded, raw: raw}
}
