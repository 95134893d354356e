package listener

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/wtask/p2pchat/internal/chat/event"
)

// Option - listener option.
type Option func(l *Listener) error

func setup(l *Listener, options ...Option) error {
	if l == nil {
		return nil
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(l); err != nil {
			return err
		}
	}
	return nil
}

// WithFamily - selects address family, IPv4 by default.
// IPv6 listener serves IPv6 only, run a separate IPv4 listener on the same port to cover both families.
func WithFamily(family Family) Option {
	return func(l *Listener) error {
		if family != IPv4 && family != IPv6 {
			return fmt.Errorf("listener.WithFamily: invalid family (%d)", family)
		}
		l.family = family
		return nil
	}
}

// WithAddress - bind the address, any address by default.
func WithAddress(host string) Option {
	return func(l *Listener) error {
		l.address = host
		return nil
	}
}

// WithPort - bind the port. Zero port means ephemeral port chosen by OS.
func WithPort(port int) Option {
	return func(l *Listener) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("listener.WithPort: invalid port (%d)", port)
		}
		l.port = port
		return nil
	}
}

// WithTimeout - overwrites default read/write timeout of connections.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Listener) error {
		if timeout <= 0 {
			return fmt.Errorf("listener.WithTimeout: invalid timeout (%v)", timeout)
		}
		l.timeout = timeout
		return nil
	}
}

// WithReadBuffer - overwrites size of single socket read.
func WithReadBuffer(size int) Option {
	return func(l *Listener) error {
		if size <= 0 {
			return fmt.Errorf("listener.WithReadBuffer: invalid size (%d)", size)
		}
		l.readBuffer = size
		return nil
	}
}

// WithNotifier - attach notifier of listener and session events.
// Note, if Listener is used without notifier it serves connections silently.
func WithNotifier(n event.Notifier) Option {
	return func(l *Listener) error {
		if n == nil {
			return errors.New("listener.WithNotifier: notifier is nil")
		}
		if l.notifier != nil {
			return errors.New("listener.WithNotifier: notifier already set up")
		}
		l.notifier = n
		return nil
	}
}

// WithLogger - attach logger, nop logger by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Listener) error {
		l.logger = logger.With().Str("component", "listener").Logger()
		return nil
	}
}

// WithTracerProvider - overwrites global tracer provider used for session spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Listener) error {
		if tp == nil {
			return errors.New("listener.WithTracerProvider: tracer provider is nil")
		}
		l.tracer = tp.Tracer(tracerName)
		return nil
	}
}
