package listener

import "errors"

var (
	// ErrBind - listener can't bind to the configured address: the port is in use or the address is invalid.
	ErrBind = errors.New("listener.Listener: bind failure")

	// ErrNoHandler - returns by New when handler is nil.
	ErrNoHandler = errors.New("listener.New: handler is required")
)
