package event

import "bytes"

// LineBuffer splits a byte stream into newline-terminated lines.
// Network reads rarely align with event boundaries, so any trailing
// partial line is carried forward until the next Feed (or Flush at
// end of stream).
type LineBuffer struct {
	pending []byte
}

// Feed appends p to the buffer and returns every complete line found,
// without the trailing newline. The returned slices are copies and
// stay valid after the next Feed.
func (b *LineBuffer) Feed(p []byte) [][]byte {
	b.pending = append(b.pending, p...)

	var lines [][]byte

	for {
		idx := bytes.IndexByte(b.pending, '\n')
		if idx < 0 {
			break
		}

		line := make([]byte, idx)
		copy(line, b.pending[:idx])
		b.pending = b.pending[idx+1:]

		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}

	return lines
}

// Flush returns the unterminated remainder, if any. Call once the
// stream has closed so a final line without a newline is not lost.
func (b *LineBuffer) Flush() []byte {
	if len(b.pending) == 0 {
		return nil
	}

	line := make([]byte, len(b.pending))
	copy(line, b.pending)
	b.pending = b.pending[:0]

	return bytes.TrimSuffix(line, []byte("\r"))
}
