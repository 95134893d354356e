package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeAll(test *testing.T, messages ...Message) []byte {
	stream := []byte{}
	for _, m := range messages {
		frame, err := Encode(m)
		require.NoError(test, err)
		stream = append(stream, frame...)
	}
	return stream
}

func TestBuilder_Empty(test *testing.T) {
	builder := Builder{}
	_, ok, err := builder.Next()
	assert.False(test, ok)
	assert.NoError(test, err)
	assert.Equal(test, 0, builder.Pending())
}

func TestBuilder_ByteByByte(test *testing.T) {
	expected := New(Register, "carol", ".png", []byte("png-bytes"))
	stream := encodeAll(test, expected)

	builder := Builder{}
	for i, b := range stream {
		builder.Write([]byte{b})
		m, ok, err := builder.Next()
		require.NoError(test, err)
		if i < len(stream)-1 {
			require.False(test, ok, "frame is ready too early at byte %d", i)
			continue
		}
		require.True(test, ok)
		assert.Equal(test, expected, m)
	}
	assert.Equal(test, 0, builder.Pending())
}

func TestBuilder_MergedFrames(test *testing.T) {
	messages := []Message{
		New(Say, "alice", "one", nil),
		New(Say, "alice", "two", nil),
		New(Register, "alice", ".gif", []byte{'G', 'I', 'F'}),
	}
	stream := encodeAll(test, messages...)

	builder := Builder{}
	// all frames plus a half of the next one
	tail := encodeAll(test, New(Say, "alice", "three", nil))
	builder.Write(stream)
	builder.Write(tail[:3])

	for _, expected := range messages {
		m, ok, err := builder.Next()
		require.NoError(test, err)
		require.True(test, ok)
		assert.Equal(test, expected, m)
	}
	_, ok, err := builder.Next()
	require.NoError(test, err)
	assert.False(test, ok)
	assert.Equal(test, 3, builder.Pending())

	builder.Write(tail[3:])
	m, ok, err := builder.Next()
	require.NoError(test, err)
	require.True(test, ok)
	assert.Equal(test, "three", m.Body)
}

func TestBuilder_MalformedIsDropped(test *testing.T) {
	builder := Builder{}
	builder.Write([]byte{3, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0x7F})
	_, ok, err := builder.Next()
	assert.False(test, ok)
	assert.ErrorIs(test, err, ErrTooLarge)
	assert.Equal(test, 0, builder.Pending())

	builder.Write(encodeAll(test, New(Say, "a", "after", nil)))
	m, ok, err := builder.Next()
	require.NoError(test, err)
	require.True(test, ok)
	assert.Equal(test, "after", m.Body)
}
