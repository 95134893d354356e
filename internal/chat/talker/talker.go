// Package talker opens outbound chat connection, sends frames and surfaces the peer's replies.
package talker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wtask/p2pchat/internal/chat/event"
	"github.com/wtask/p2pchat/internal/chat/message"
	"github.com/wtask/p2pchat/internal/chat/registry"
	"github.com/wtask/p2pchat/internal/chat/wire"
	"github.com/wtask/p2pchat/pkg/background"
)

const tracerName = "github.com/wtask/p2pchat/internal/chat/talker"

// Talker - active chat connection with background receive loop.
// Requests and replies are not correlated: one Send is expected to produce one MessageEvent.
type Talker struct {
	timeout    time.Duration
	readBuffer int
	notifier   event.Notifier
	logger     zerolog.Logger
	tracer     trace.Tracer

	conn   *wire.Conn
	base   event.NetEvent
	span   trace.Span
	cancel func()
	done   chan struct{}
	alive  atomic.Bool
	close  sync.Once
}

func newTalker(options ...Option) (*Talker, error) {
	t := &Talker{
		timeout: 60 * time.Second,
		logger:  zerolog.Nop(),
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
		done:    make(chan struct{}),
	}
	if err := setup(t, options...); err != nil {
		return nil, err
	}
	return t, nil
}

// Dial - connects to remote listener and starts receive loop.
func Dial(ctx context.Context, host string, port int, options ...Option) (*Talker, error) {
	t, err := newTalker(options...)
	if err != nil {
		return nil, err
	}
	address := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		t.logger.Warn().Err(err).Str("addr", address).Msg("connect failed")
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, address, err)
	}
	t.run(conn)
	return t, nil
}

// New - builds talker over already established connection.
func New(conn net.Conn, options ...Option) (*Talker, error) {
	if conn == nil {
		return nil, fmt.Errorf("talker.New: connection is nil: %w", ErrConnect)
	}
	t, err := newTalker(options...)
	if err != nil {
		return nil, err
	}
	t.run(conn)
	return t, nil
}

func (t *Talker) run(conn net.Conn) {
	t.conn = wire.NewConn(conn, t.timeout, t.readBuffer)
	t.base = event.NetEvent{
		Source:  event.SourceTalker,
		Session: uuid.NewString(),
		Peer:    t.conn.Peer(),
	}
	t.logger = t.logger.With().Str("session", t.base.Session).Str("peer", t.base.Peer).Logger()
	_, t.span = t.tracer.Start(context.Background(), "chat.talk",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("chat.session", t.base.Session),
			attribute.String("net.peer.address", t.base.Peer),
		),
	)
	t.alive.Store(true)

	t.logger.Info().Msg("connected")
	event.Notify(t.notifier, event.StateEvent{NetEvent: event.Stamp(t.base), State: event.StateConnected})
	event.Notify(t.notifier, event.StatusEvent{NetEvent: event.Stamp(t.base), Text: "Connected: " + t.base.Peer})

	scope, cancel := background.NewScope()
	t.cancel = cancel
	scope.Go(t.receiveLoop)
}

// Peer - remote address.
func (t *Talker) Peer() string {
	return t.base.Peer
}

// Session - connection identifier used in events.
func (t *Talker) Session() string {
	return t.base.Session
}

// Connected - reports whether connection is alive.
func (t *Talker) Connected() bool {
	return t.alive.Load()
}

// Done - closed when receive loop is over.
func (t *Talker) Done() <-chan struct{} {
	return t.done
}

// Send - writes frame. Does nothing if connection is already torn down.
func (t *Talker) Send(m message.Message) error {
	if !t.Connected() {
		return nil
	}
	if err := t.conn.Send(m); err != nil {
		if errors.Is(err, wire.ErrStopped) {
			// receive loop has closed connection, but has not reported it yet
			t.logger.Debug().Stringer("command", m.Command).Msg("frame is not sent, connection is closed")
			return nil
		}
		t.logger.Error().Err(err).Stringer("command", m.Command).Msg("send failed")
		return err
	}
	t.span.AddEvent("frame sent", trace.WithAttributes(attribute.Stringer("chat.command", m.Command)))
	t.logger.Debug().Stringer("command", m.Command).Str("body", m.Body).Msg("frame sent")
	return nil
}

// Say - sends text message.
func (t *Talker) Say(sender, text string) error {
	return t.Send(message.New(message.Say, sender, text, nil))
}

// Register - announces local user with its icon file.
func (t *Talker) Register(name, iconPath string) error {
	m, err := registry.SelfRegistration(name, iconPath)
	if err != nil {
		return err
	}
	return t.Send(m)
}

// Close - stops receive loop and closes connection. Safe to call multiple times.
func (t *Talker) Close() error {
	var err error
	t.close.Do(func() {
		t.alive.Store(false)
		err = t.conn.Close()
		t.cancel()
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			// receive loop is over and connection is already closed
			err = nil
		}
	})
	return err
}

func (t *Talker) receiveLoop(ctx context.Context) {
	defer func() {
		t.alive.Store(false)
		t.conn.Close()
		t.logger.Info().Msg("disconnected")
		event.Notify(t.notifier, event.StateEvent{NetEvent: event.Stamp(t.base), State: event.StateDisconnected})
		t.span.End()
		close(t.done)
	}()

	for {
		m, err := t.conn.Receive(ctx)
		if err == nil {
			t.span.AddEvent("frame received", trace.WithAttributes(
				attribute.Stringer("chat.command", m.Command),
				attribute.String("chat.sender", m.Sender),
			))
			t.logger.Debug().Stringer("command", m.Command).Str("sender", m.Sender).Msg("frame received")
			event.Notify(t.notifier, event.MessageEvent{NetEvent: event.Stamp(t.base), Message: m})
			continue
		}
		if !wire.Fatal(err) {
			t.logger.Warn().Err(err).Msg("frame dropped")
			event.Notify(t.notifier, event.StatusEvent{NetEvent: event.Stamp(t.base), Text: err.Error(), Err: err})
			continue
		}

		action := wire.PartAction(err)
		t.span.SetAttributes(attribute.Stringer("chat.part", action))
		if action == event.PartActionTimeout || action == event.PartActionFailed {
			t.span.RecordError(err)
			t.span.SetStatus(codes.Error, action.String())
		}
		switch action {
		case event.PartActionLeft:
			event.Notify(t.notifier, event.StatusEvent{NetEvent: event.Stamp(t.base), Text: "Disconnected"})
		case event.PartActionTimeout:
			t.logger.Warn().Err(err).Msg("connection timed out")
			event.Notify(t.notifier, event.StatusEvent{NetEvent: event.Stamp(t.base), Text: "Timeout: " + t.base.Peer, Err: err})
		case event.PartActionFailed:
			t.logger.Error().Err(err).Msg("connection failed")
			event.Notify(t.notifier, event.StatusEvent{NetEvent: event.Stamp(t.base), Text: err.Error(), Err: err})
		}
		event.Notify(t.notifier, event.PartEvent{NetEvent: event.Stamp(t.base), Action: action})
		return
	}
}
