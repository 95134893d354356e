package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/wtask/p2pchat/internal/chat/event"
)

var (
	// ErrTimeout - socket operation exceeded configured timeout.
	ErrTimeout = errors.New("wire: timeout")

	// ErrDisconnected - peer has closed connection (zero-byte read).
	ErrDisconnected = errors.New("wire: disconnected")

	// ErrStopped - connection loop was cancelled or connection was closed locally.
	ErrStopped = errors.New("wire: stopped")
)

// SocketError - OS-level socket failure.
type SocketError struct {
	Op    string
	Addr  string
	Errno syscall.Errno
	Err   error
}

// Name - symbolic name of OS error code, like ECONNRESET.
func (e *SocketError) Name() string {
	return errnoName(e.Errno)
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name(), e.Addr)
}

func (e *SocketError) Unwrap() error {
	return e.Err
}

// FrameError - malformed or incomplete frame was received and dropped.
// The connection itself stays usable.
type FrameError struct {
	Addr string
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed frame from %s: %v", e.Addr, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Classify - maps error of socket operation with given peer address to package errors.
func Classify(err error, op, addr string) error {
	if err == nil {
		return nil
	}
	var (
		netErr net.Error
		errno  syscall.Errno
	)
	switch {
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: %s", ErrDisconnected, addr)
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		return fmt.Errorf("%w: %s", ErrStopped, addr)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %s %s", ErrTimeout, op, addr)
	case errors.As(err, &errno):
		return &SocketError{Op: op, Addr: addr, Errno: errno, Err: err}
	default:
		return err
	}
}

// Fatal - reports whether err ends connection loop.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	var frameErr *FrameError
	return !errors.As(err, &frameErr)
}

// PartAction - translates error which ended connection loop into part action.
func PartAction(err error) event.PartAction {
	switch {
	case errors.Is(err, ErrDisconnected):
		return event.PartActionLeft
	case errors.Is(err, ErrTimeout):
		return event.PartActionTimeout
	case errors.Is(err, ErrStopped), errors.Is(err, context.Canceled):
		return event.PartActionStopped
	default:
		return event.PartActionFailed
	}
}
