// Package listener accepts inbound chat connections and serves every one of them in its own session:
// read frame, handle it, write response, repeat until disconnect, timeout, failure or stop.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wtask/p2pchat/internal/chat/event"
	"github.com/wtask/p2pchat/internal/chat/message"
	"github.com/wtask/p2pchat/pkg/background"
)

const (
	acceptRetryDelay = 100 * time.Millisecond
	tracerName       = "github.com/wtask/p2pchat/internal/chat/listener"
)

// Family - address family of listener.
type Family int

const (
	_ Family = iota
	// IPv4 - listen IPv4 only.
	IPv4
	// IPv6 - listen IPv6 only (dual-stack is explicitly disabled).
	IPv6
)

func (f Family) network() string {
	if f == IPv6 {
		return "tcp6"
	}
	return "tcp4"
}

func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "Family(" + strconv.Itoa(int(f)) + ")"
	}
}

// Handler - computes response for every received frame.
type Handler interface {
	Handle(message.Message) message.Message
}

// HandlerFunc - adapts function to Handler.
type HandlerFunc func(message.Message) message.Message

// Handle - implements Handler.
func (f HandlerFunc) Handle(m message.Message) message.Message {
	return f(m)
}

// Listener - passive chat endpoint.
type Listener struct {
	family     Family
	address    string
	port       int
	timeout    time.Duration
	readBuffer int
	handler    Handler
	notifier   event.Notifier
	logger     zerolog.Logger
	tracer     trace.Tracer

	mu     sync.Mutex
	ln     net.Listener
	scope  *background.Scope
	cancel func()

	sessions atomic.Int32
}

// New - builds Listener with needed options. Listener is stopped until Start.
func New(handler Handler, options ...Option) (*Listener, error) {
	if handler == nil {
		return nil, ErrNoHandler
	}
	l := &Listener{
		family:  IPv4,
		timeout: 60 * time.Second,
		handler: handler,
		logger:  zerolog.Nop(),
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
	}
	if err := setup(l, options...); err != nil {
		return nil, err
	}
	return l, nil
}

// Start - binds and starts accepting connections in background.
// Does nothing if listener is already listening.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return nil
	}

	network := l.family.network()
	address := net.JoinHostPort(l.address, strconv.Itoa(l.port))
	lc := net.ListenConfig{}
	if l.family == IPv6 {
		lc.Control = ipv6Only
	}
	ln, err := lc.Listen(context.Background(), network, address)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrBind, network, address, err)
	}

	scope, cancel := background.NewScope()
	l.ln, l.scope, l.cancel = ln, scope, cancel

	base := event.NetEvent{Source: event.SourceListener, Peer: ln.Addr().String()}
	l.logger.Info().Str("addr", formatAddress(ln.Addr())).Msg("listening started")
	event.Notify(l.notifier, event.StateEvent{NetEvent: event.Stamp(base), State: event.StateListening})
	event.Notify(l.notifier, event.StatusEvent{NetEvent: event.Stamp(base), Text: "Listening: " + ln.Addr().String()})

	scope.Go(func(ctx context.Context) {
		l.acceptLoop(ctx, scope, ln)
	})
	return nil
}

// Stop - stops accepting, closes listening socket and waits for sessions.
// Sessions waiting for data are released at once, a write in progress is completed.
// Does nothing if listener is already stopped.
func (l *Listener) Stop() {
	l.mu.Lock()
	ln, cancel := l.ln, l.cancel
	l.ln, l.scope, l.cancel = nil, nil, nil
	l.mu.Unlock()
	if ln == nil {
		return
	}

	ln.Close()
	cancel()

	base := event.NetEvent{Source: event.SourceListener, Peer: ln.Addr().String()}
	l.logger.Info().Str("addr", formatAddress(ln.Addr())).Msg("listening stopped")
	event.Notify(l.notifier, event.StatusEvent{NetEvent: event.Stamp(base), Text: "Stopped: " + ln.Addr().String()})
	event.Notify(l.notifier, event.StateEvent{NetEvent: event.Stamp(base), State: event.StateStopped})
}

// Listening - reports whether listener accepts connections.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ln != nil
}

// Addr - returns bound address, nil when stopped.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Port - returns bound port, or configured port when stopped.
func (l *Listener) Port() int {
	if addr, ok := l.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return l.port
}

// Family - returns address family.
func (l *Listener) Family() Family {
	return l.family
}

// Sessions - returns number of connections being served.
func (l *Listener) Sessions() int {
	return int(l.sessions.Load())
}

func (l *Listener) acceptLoop(ctx context.Context, scope *background.Scope, ln net.Listener) {
	for {
		// close listener to stop infinite loop.
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Error().Err(err).Msg("accept failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(acceptRetryDelay):
			}
			continue
		}

		// do not block accepting, every session runs on its own
		started := scope.Go(func(ctx context.Context) {
			l.sessions.Add(1)
			defer l.sessions.Add(-1)
			l.serve(ctx, conn)
		})
		if !started {
			conn.Close()
			return
		}
	}
}
