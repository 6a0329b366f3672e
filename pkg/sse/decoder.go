package sse

import (
	"bytes"
)

// LineDecoder splits a chunked byte stream into complete lines. It keeps a
// single pending buffer holding the fragment after the last newline, so a
// line (or a multi-byte UTF-8 sequence) split across chunks is reassembled
// before it is returned.
//
// The zero value is ready to use.
type LineDecoder struct {
	pending []byte
}

// Feed appends chunk to the pending buffer and returns every complete line
// it now contains. Line terminators are "\n"; a trailing "\r" is stripped.
// Invalid UTF-8 in a complete line is replaced with U+FFFD.
func (d *LineDecoder) Feed(chunk []byte) []string {
	d.pending = append(d.pending, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, decodeLine(d.pending[:i]))
		d.pending = d.pending[i+1:]
	}

	// Compact so the backing array does not grow with the stream.
	if len(d.pending) == 0 {
		d.pending = nil
	} else if cap(d.pending) > 4*len(d.pending)+4096 {
		d.pending = append([]byte(nil), d.pending...)
	}

	return lines
}

// Flush returns whatever remains in the pending buffer at end of stream.
// ok is false when nothing is pending.
func (d *LineDecoder) Flush() (string, bool) {
	if len(d.pending) == 0 {
		return "", false
	}
	line := decodeLine(d.pending)
	d.pending = nil
	return line, true
}

// Pending reports the number of buffered bytes not yet returned as a line.
func (d *LineDecoder) Pending() int {
	return len(d.pending)
}

func decodeLine(b []byte) string {
	b = bytes.TrimSuffix(b, []byte("\r"))
	return string(bytes.ToValidUTF8(b, []byte("�")))
}
