package message

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// MaxFieldSize - upper bound for text fields and icon payload.
const MaxFieldSize = 16 * 1024 * 1024

const (
	commandSize    = 2
	iconLengthSize = 4
)

// Encode - encodes message into frame:
//
//	int16 command | uvarint len + UTF-8 sender | uvarint len + UTF-8 body | int32 icon length | icon
//
// Integers are little-endian.
func Encode(m Message) ([]byte, error) {
	if len(m.Sender) > MaxFieldSize {
		return nil, fmt.Errorf("message.Encode: sender (%d bytes): %w", len(m.Sender), ErrTooLarge)
	}
	if len(m.Body) > MaxFieldSize {
		return nil, fmt.Errorf("message.Encode: body (%d bytes): %w", len(m.Body), ErrTooLarge)
	}
	if len(m.Icon) > MaxFieldSize || len(m.Icon) > math.MaxInt32 {
		return nil, fmt.Errorf("message.Encode: icon (%d bytes): %w", len(m.Icon), ErrTooLarge)
	}

	size := commandSize +
		binary.MaxVarintLen32 + len(m.Sender) +
		binary.MaxVarintLen32 + len(m.Body) +
		iconLengthSize + len(m.Icon)
	frame := make([]byte, 0, size)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(m.Command))
	frame = appendText(frame, m.Sender)
	frame = appendText(frame, m.Body)
	frame = binary.LittleEndian.AppendUint32(frame, uint32(int32(len(m.Icon))))
	frame = append(frame, m.Icon...)
	return frame, nil
}

func appendText(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

// Decode - decodes exactly one frame, p must not contain anything else.
func Decode(p []byte) (Message, error) {
	m, n, err := DecodeFrame(p)
	if err != nil {
		return Message{}, err
	}
	if n != len(p) {
		return Message{}, fmt.Errorf("message.Decode: %d byte(s) after frame: %w", len(p)-n, ErrTrailingData)
	}
	return m, nil
}

// DecodeFrame - decodes the frame at the beginning of p and returns the number of consumed bytes.
// Returns ErrTruncated when p ends before the declared lengths are satisfied.
// The result never references p.
func DecodeFrame(p []byte) (Message, int, error) {
	r := frameReader{p: p}
	raw, err := r.next(commandSize)
	if err != nil {
		return Message{}, 0, err
	}
	m := Message{Command: Command(int16(binary.LittleEndian.Uint16(raw)))}
	if m.Sender, err = r.text(); err != nil {
		return Message{}, 0, err
	}
	if m.Body, err = r.text(); err != nil {
		return Message{}, 0, err
	}
	if raw, err = r.next(iconLengthSize); err != nil {
		return Message{}, 0, err
	}
	iconLength := int32(binary.LittleEndian.Uint32(raw))
	if iconLength > MaxFieldSize {
		return Message{}, 0, fmt.Errorf("message.DecodeFrame: icon length %d: %w", iconLength, ErrTooLarge)
	}
	if iconLength > 0 {
		if raw, err = r.next(int(iconLength)); err != nil {
			return Message{}, 0, err
		}
		m.Icon = bytes.Clone(raw)
	}
	return m, r.off, nil
}

type frameReader struct {
	p   []byte
	off int
}

func (r *frameReader) next(n int) ([]byte, error) {
	if len(r.p)-r.off < n {
		return nil, ErrTruncated
	}
	b := r.p[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *frameReader) text() (string, error) {
	size, k := binary.Uvarint(r.p[r.off:])
	switch {
	case k == 0:
		return "", ErrTruncated
	case k < 0:
		return "", fmt.Errorf("message: malformed length prefix: %w", ErrTooLarge)
	case size > MaxFieldSize:
		return "", fmt.Errorf("message: text length %d: %w", size, ErrTooLarge)
	}
	r.off += k
	b, err := r.next(int(size))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
