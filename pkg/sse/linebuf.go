package sse

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LineAssembler accumulates raw bytes into text and splits it into complete
// lines. It is owned by exactly one decode session.
//
// Two pieces of state survive between Feed calls:
//   - carry holds a multi-byte UTF-8 sequence cut by a chunk boundary.
//   - tail holds the text after the last "\n" seen so far. It never contains
//     a newline and is only ever emitted by Flush.
type LineAssembler struct {
	decoder transform.Transformer
	carry   []byte
	tail    strings.Builder
	flushed bool
}

// NewLineAssembler returns an empty LineAssembler.
func NewLineAssembler() *LineAssembler {
	return &LineAssembler{
		decoder: unicode.UTF8.NewDecoder(),
	}
}

// Feed decodes chunk, appends it to the held tail and returns every line that
// is now complete, in order, without the "\n" terminator. An empty chunk
// yields no lines.
func (a *LineAssembler) Feed(chunk []byte) []string {
	if len(chunk) == 0 || a.flushed {
		return nil
	}

	text := a.decode(chunk, false)
	if text == "" {
		return nil
	}

	var lines []string
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}
		if a.tail.Len() == 0 {
			lines = append(lines, text[:i])
		} else {
			a.tail.WriteString(text[:i])
			lines = append(lines, a.tail.String())
			a.tail = strings.Builder{}
		}
		text = text[i+1:]
	}
	a.tail.WriteString(text)

	return lines
}

// Flush finalises the session: any dangling partial character is replaced
// with U+FFFD and the unterminated tail, if non-empty, is returned as the last
// line. Flush reports false when there is nothing left. Only the first call
// does anything.
func (a *LineAssembler) Flush() (string, bool) {
	if a.flushed {
		return "", false
	}
	a.flushed = true

	if len(a.carry) > 0 {
		a.tail.WriteString(a.decode(nil, true))
	}

	line := a.tail.String()
	a.tail = strings.Builder{}
	if line == "" {
		return "", false
	}

	return line, true
}

// Pending reports the number of bytes held back: the partial UTF-8 carry plus
// the unterminated tail.
func (a *LineAssembler) Pending() int {
	return len(a.carry) + a.tail.Len()
}

// decode runs the carry plus src through the UTF-8 decoder. Bytes the decoder
// cannot consume yet (an incomplete trailing sequence) become the new carry.
func (a *LineAssembler) decode(src []byte, atEOF bool) string {
	in := src
	if len(a.carry) > 0 {
		in = make([]byte, 0, len(a.carry)+len(src))
		in = append(in, a.carry...)
		in = append(in, src...)
	}

	// Every invalid byte may expand to a three byte U+FFFD.
	dst := make([]byte, len(in)*3+utf8.UTFMax)
	var out strings.Builder
	for {
		nDst, nSrc, err := a.decoder.Transform(dst, in, atEOF)
		out.Write(dst[:nDst])
		in = in[nSrc:]

		switch {
		case err == nil:
			a.carry = nil
			return out.String()
		case errors.Is(err, transform.ErrShortDst):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			a.carry = append([]byte(nil), in...)
			return out.String()
		default:
			// The UTF-8 decoder replaces invalid input instead of failing, so
			// this is unreachable in practice. Keep the bytes as-is.
			out.Write(in)
			a.carry = nil
			return out.String()
		}
	}
}
