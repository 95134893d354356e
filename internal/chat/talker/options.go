package talker

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/wtask/p2pchat/internal/chat/event"
)

// Option - talker option.
type Option func(t *Talker) error

func setup(t *Talker, options ...Option) error {
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(t); err != nil {
			return err
		}
	}
	return nil
}

// WithTimeout - overwrites default timeout of connect, read and write operations.
func WithTimeout(timeout time.Duration) Option {
	return func(t *Talker) error {
		if timeout <= 0 {
			return fmt.Errorf("talker.WithTimeout: invalid timeout (%v)", timeout)
		}
		t.timeout = timeout
		return nil
	}
}

// WithReadBuffer - overwrites size of single socket read.
func WithReadBuffer(size int) Option {
	return func(t *Talker) error {
		if size <= 0 {
			return fmt.Errorf("talker.WithReadBuffer: invalid size (%d)", size)
		}
		t.readBuffer = size
		return nil
	}
}

// WithNotifier - attach notifier of connection state, status lines and received acknowledgements.
func WithNotifier(n event.Notifier) Option {
	return func(t *Talker) error {
		if n == nil {
			return errors.New("talker.WithNotifier: notifier is nil")
		}
		if t.notifier != nil {
			return errors.New("talker.WithNotifier: notifier already set up")
		}
		t.notifier = n
		return nil
	}
}

// WithLogger - attach logger, nop logger by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Talker) error {
		t.logger = logger.With().Str("component", "talker").Logger()
		return nil
	}
}

// WithTracerProvider - overwrites global tracer provider used for connection span.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Talker) error {
		if tp == nil {
			return errors.New("talker.WithTracerProvider: tracer provider is nil")
		}
		t.tracer = tp.Tracer(tracerName)
		return nil
	}
}
