package message

import (
	"bytes"
	"errors"
)

// Builder - implements io.Writer interface to assemble frames from stream bytes.
// Bytes may arrive in any chunks: a chunk can hold a part of a frame or several frames.
type Builder struct {
	buf bytes.Buffer
}

func (b *Builder) Write(p []byte) (n int, err error) {
	return b.buf.Write(p)
}

// Next - returns next complete frame if it is ready.
// When buffered bytes are only a part of frame, returns ok == false and nil error.
// Malformed content is dropped entirely and the error is returned once.
func (b *Builder) Next() (m Message, ok bool, err error) {
	if b.buf.Len() == 0 {
		return Message{}, false, nil
	}
	m, n, err := DecodeFrame(b.buf.Bytes())
	switch {
	case err == nil:
		b.buf.Next(n)
		if b.buf.Len() == 0 {
			// release memory held by large frames
			b.buf = bytes.Buffer{}
		}
		return m, true, nil
	case errors.Is(err, ErrTruncated):
		return Message{}, false, nil
	default:
		b.Reset()
		return Message{}, false, err
	}
}

// Pending - returns number of buffered bytes which do not form a complete frame yet.
func (b *Builder) Pending() int {
	return b.buf.Len()
}

// Reset - drops buffered bytes.
func (b *Builder) Reset() {
	b.buf = bytes.Buffer{}
}
