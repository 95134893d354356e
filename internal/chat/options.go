package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Option - peer option.
type Option func(p *Peer) error

func setup(p *Peer, options ...Option) error {
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(p); err != nil {
			return err
		}
	}
	return nil
}

// WithLogger - attach logger, nop logger by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Peer) error {
		p.logger = logger
		return nil
	}
}

// WithEventBuffer - overwrites capacity of events channel.
func WithEventBuffer(size int) Option {
	return func(p *Peer) error {
		if size < 0 {
			return fmt.Errorf("chat.WithEventBuffer: invalid size (%d)", size)
		}
		p.eventBuffer = size
		return nil
	}
}

// WithClock - overwrites clock used to answer time requests.
func WithClock(now func() time.Time) Option {
	return func(p *Peer) error {
		if now == nil {
			return errors.New("chat.WithClock: clock is nil")
		}
		p.now = now
		return nil
	}
}

// WithTracerProvider - tracer provider of listener sessions and talkers, global provider by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Peer) error {
		if tp == nil {
			return errors.New("chat.WithTracerProvider: tracer provider is nil")
		}
		p.tracerProvider = tp
		return nil
	}
}
