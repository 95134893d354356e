// Package wire exchanges chat frames over a stream connection.
// It is shared by listener sessions and outbound talkers.
package wire

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/wtask/p2pchat/internal/chat/message"
)

// DefaultReadBuffer - size of single socket read.
const DefaultReadBuffer = 1024

var aLongTimeAgo = time.Unix(1, 0)

// Conn - framed connection.
// Receive must be called from single goroutine, Send is safe for concurrent use.
type Conn struct {
	conn    net.Conn
	timeout time.Duration
	peer    string

	builder message.Builder
	buf     []byte
	readErr error

	writeMu sync.Mutex
}

// NewConn - wraps connection. Zero timeout disables deadlines.
func NewConn(conn net.Conn, timeout time.Duration, readBuffer int) *Conn {
	if readBuffer <= 0 {
		readBuffer = DefaultReadBuffer
	}
	return &Conn{
		conn:    conn,
		timeout: timeout,
		peer:    conn.RemoteAddr().String(),
		buf:     make([]byte, readBuffer),
	}
}

// Peer - remote address.
func (c *Conn) Peer() string {
	return c.peer
}

// Close - closes underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Send - writes one frame within write timeout.
func (c *Conn) Send(m message.Message) error {
	frame, err := message.Encode(m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.timeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	_, err = c.conn.Write(frame)
	return Classify(err, "write", c.peer)
}

// Receive - returns next frame.
// Every socket read waits no longer than timeout, so an idle peer causes ErrTimeout.
// Cancelling ctx releases a blocked read and Receive returns ErrStopped.
// Frames which were completely received before disconnect are returned before ErrDisconnected.
// A malformed frame is reported as *FrameError, the next call continues with following bytes.
func (c *Conn) Receive(ctx context.Context) (message.Message, error) {
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(aLongTimeAgo)
	})
	defer stop()

	for {
		m, ok, err := c.builder.Next()
		if err != nil {
			return message.Message{}, &FrameError{Addr: c.peer, Err: err}
		}
		if ok {
			return m, nil
		}
		if c.readErr != nil {
			if c.builder.Pending() > 0 && errors.Is(c.readErr, ErrDisconnected) {
				c.builder.Reset()
				return message.Message{}, &FrameError{Addr: c.peer, Err: message.ErrTruncated}
			}
			return message.Message{}, c.readErr
		}

		if c.timeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.timeout))
		} else {
			c.conn.SetReadDeadline(time.Time{})
		}
		if ctx.Err() != nil {
			return message.Message{}, ErrStopped
		}

		n, err := c.conn.Read(c.buf)
		if n > 0 {
			c.builder.Write(c.buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil {
				return message.Message{}, ErrStopped
			}
			c.readErr = Classify(err, "read", c.peer)
		}
	}
}
