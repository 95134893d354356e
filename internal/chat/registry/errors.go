package registry

import "errors"

var (
	// ErrIO - icon file can't be written or read.
	ErrIO = errors.New("registry: icon i/o failure")

	// ErrNotRegister - message passed to Register is not a Register command.
	ErrNotRegister = errors.New("registry: not a register message")

	// ErrNoIcon - register message has no icon.
	ErrNoIcon = errors.New("registry: register message has no icon")

	// ErrInvalidName - sender name can't be used as icon file name.
	ErrInvalidName = errors.New("registry: invalid client name")
)
