package listener

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wtask/p2pchat/internal/chat/event"
	"github.com/wtask/p2pchat/internal/chat/wire"
)

// serve - session loop for accepted connection.
func (l *Listener) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	c := wire.NewConn(conn, l.timeout, l.readBuffer)
	base := event.NetEvent{
		Source:  event.SourceListener,
		Session: uuid.NewString(),
		Peer:    c.Peer(),
	}
	logger := l.logger.With().Str("session", base.Session).Str("peer", base.Peer).Logger()
	ctx, span := l.tracer.Start(ctx, "chat.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("chat.session", base.Session),
			attribute.String("net.peer.address", base.Peer),
		),
	)
	defer span.End()

	logger.Info().Msg("peer connected")
	event.Notify(l.notifier, event.StateEvent{NetEvent: event.Stamp(base), State: event.StateConnected})
	event.Notify(l.notifier, event.StatusEvent{NetEvent: event.Stamp(base), Text: "Connected: " + base.Peer})

	action := l.serveLoop(ctx, c, base, logger)
	span.SetAttributes(attribute.Stringer("chat.part", action))
	if action == event.PartActionTimeout || action == event.PartActionFailed {
		span.SetStatus(codes.Error, action.String())
	}

	logger.Info().Stringer("action", action).Msg("peer disconnected")
	event.Notify(l.notifier, event.StatusEvent{NetEvent: event.Stamp(base), Text: "Disconnected: " + base.Peer})
	event.Notify(l.notifier, event.StateEvent{NetEvent: event.Stamp(base), State: event.StateDisconnected})
	event.Notify(l.notifier, event.PartEvent{NetEvent: event.Stamp(base), Action: action})
}

func (l *Listener) serveLoop(ctx context.Context, c *wire.Conn, base event.NetEvent, logger zerolog.Logger) event.PartAction {
	for {
		m, err := c.Receive(ctx)
		if err != nil {
			if !wire.Fatal(err) {
				logger.Warn().Err(err).Msg("frame dropped")
				event.Notify(l.notifier, event.StatusEvent{NetEvent: event.Stamp(base), Text: err.Error(), Err: err})
				continue
			}
			return partWith(l.notifier, base, logger, err)
		}

		_, frame := l.tracer.Start(ctx, "chat.frame", trace.WithAttributes(
			attribute.Stringer("chat.command", m.Command),
			attribute.String("chat.sender", m.Sender),
		))
		response := l.handler.Handle(m)
		logger.Debug().
			Stringer("command", m.Command).
			Str("sender", m.Sender).
			Str("response", response.Body).
			Msg("frame received")
		event.Notify(l.notifier, event.MessageEvent{NetEvent: event.Stamp(base), Message: m, Response: &response})

		err = c.Send(response)
		if err != nil {
			frame.RecordError(err)
			frame.SetStatus(codes.Error, "response is not sent")
		}
		frame.End()
		if err != nil {
			return partWith(l.notifier, base, logger, err)
		}
	}
}

// partWith - reports the reason of the session end and translates it into part action.
func partWith(n event.Notifier, base event.NetEvent, logger zerolog.Logger, err error) event.PartAction {
	action := wire.PartAction(err)
	switch action {
	case event.PartActionLeft, event.PartActionStopped:
		return action
	case event.PartActionTimeout:
		logger.Warn().Err(err).Msg("connection timed out")
		event.Notify(n, event.StatusEvent{NetEvent: event.Stamp(base), Text: "Timeout: " + base.Peer, Err: err})
	default:
		logger.Error().Err(err).Msg("connection failed")
		event.Notify(n, event.StatusEvent{NetEvent: event.Stamp(base), Text: err.Error(), Err: err})
	}
	return action
}

// formatAddress - formats specified network address for logging purposes.
func formatAddress(a net.Addr) string {
	return fmt.Sprintf("%s %s", a.Network(), a.String())
}
