package listener

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wtask/p2pchat/internal/chat/event"
	"github.com/wtask/p2pchat/internal/chat/message"
	"github.com/wtask/p2pchat/internal/chat/wire"
)

var echo = HandlerFunc(func(m message.Message) message.Message {
	return message.New(message.Acknowledge, "listener", m.Body, nil)
})

// collector - receives listener events for checks
type collector struct {
	events chan event.Event
	queue  *event.Queue
}

func newCollector(test *testing.T) *collector {
	events := make(chan event.Event, 64)
	q := event.NewQueue(events)
	test.Cleanup(q.Close)
	return &collector{events, q}
}

// wait - returns first event matched by f, skips others
func (c *collector) wait(test *testing.T, f func(event.Event) bool) event.Event {
	test.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-c.events:
			test.Logf("%T %+v", e, e)
			if f(e) {
				return e
			}
		case <-timeout:
			test.Fatal("expected event was not received")
			return nil
		}
	}
}

func isState(state event.State) func(event.Event) bool {
	return func(e event.Event) bool {
		s, ok := e.(event.StateEvent)
		return ok && s.State == state
	}
}

func isPart(e event.Event) bool {
	_, ok := e.(event.PartEvent)
	return ok
}

func startListener(test *testing.T, options ...Option) *Listener {
	l, err := New(echo, options...)
	require.NoError(test, err)
	require.NoError(test, l.Start())
	test.Cleanup(l.Stop)
	return l
}

func dial(test *testing.T, l *Listener, timeout time.Duration) *wire.Conn {
	conn, err := net.DialTimeout("tcp", l.Addr().String(), time.Second)
	require.NoError(test, err)
	test.Cleanup(func() { conn.Close() })
	return wire.NewConn(conn, timeout, 0)
}

func Test_New(test *testing.T) {
	notifier := event.NewQueue(nil)
	l, err := New(
		echo,
		WithFamily(IPv6),
		WithAddress("::1"),
		WithPort(2001),
		WithTimeout(15*time.Second),
		WithReadBuffer(10),
		WithNotifier(notifier),
	)
	require.NoError(test, err)
	assert.Equal(test, IPv6, l.family)
	assert.Equal(test, "::1", l.address)
	assert.Equal(test, 2001, l.port)
	assert.Equal(test, 15*time.Second, l.timeout)
	assert.Equal(test, 10, l.readBuffer)
	assert.Equal(test, notifier, l.notifier)
	assert.False(test, l.Listening())
	assert.Nil(test, l.Addr())
	assert.Equal(test, 2001, l.Port())
}

func Test_New_InvalidOptions(test *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(test, err, ErrNoHandler)

	cases := []Option{
		WithFamily(Family(0)),
		WithPort(-1),
		WithPort(70000),
		WithTimeout(0),
		WithReadBuffer(0),
		WithNotifier(nil),
		WithTracerProvider(nil),
	}
	for i, option := range cases {
		_, err := New(echo, option)
		assert.Error(test, err, "case #%d", i)
	}
	q := event.NewQueue(nil)
	_, err = New(echo, WithNotifier(q), WithNotifier(q))
	assert.Error(test, err)
}

func TestListener_StartStop(test *testing.T) {
	c := newCollector(test)
	l, err := New(echo, WithAddress("127.0.0.1"), WithNotifier(c.queue))
	require.NoError(test, err)

	require.NoError(test, l.Start())
	addr := l.Addr()
	require.NotNil(test, addr)
	assert.True(test, l.Listening())
	assert.NotZero(test, l.Port())
	c.wait(test, isState(event.StateListening))

	// idempotent start keeps the same socket
	require.NoError(test, l.Start())
	assert.Equal(test, addr, l.Addr())

	l.Stop()
	assert.False(test, l.Listening())
	c.wait(test, isState(event.StateStopped))
	l.Stop()

	_, err = net.DialTimeout("tcp", addr.String(), 100*time.Millisecond)
	assert.Error(test, err, "stopped listener must not accept connections")

	// listener can be started again
	require.NoError(test, l.Start())
	l.Stop()
}

func TestListener_Start_BindFailure(test *testing.T) {
	busy := startListener(test, WithAddress("127.0.0.1"))

	l, err := New(echo, WithAddress("127.0.0.1"), WithPort(busy.Port()))
	require.NoError(test, err)
	err = l.Start()
	assert.ErrorIs(test, err, ErrBind)
	assert.False(test, l.Listening())

	// IPv6 address can't be bound by IPv4 listener
	l, err = New(echo, WithFamily(IPv4), WithAddress("::1"))
	require.NoError(test, err)
	assert.ErrorIs(test, l.Start(), ErrBind)
}

func TestListener_Serve(test *testing.T) {
	c := newCollector(test)
	l := startListener(test, WithAddress("127.0.0.1"), WithNotifier(c.queue))
	conn := dial(test, l, time.Second)

	c.wait(test, isState(event.StateConnected))
	for _, body := range []string{"first", "second"} {
		require.NoError(test, conn.Send(message.New(message.Say, "alice", body, nil)))
		response, err := conn.Receive(context.Background())
		require.NoError(test, err)
		assert.Equal(test, message.New(message.Acknowledge, "listener", body, nil), response)

		e := c.wait(test, func(e event.Event) bool {
			_, ok := e.(event.MessageEvent)
			return ok
		}).(event.MessageEvent)
		assert.Equal(test, body, e.Message.Body)
		require.NotNil(test, e.Response)
		assert.Equal(test, body, e.Response.Body)
		assert.Equal(test, event.SourceListener, e.Source)
		assert.NotEmpty(test, e.Session)
	}
}

func TestListener_SessionSpans(test *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	c := newCollector(test)
	l := startListener(test, WithAddress("127.0.0.1"), WithNotifier(c.queue), WithTracerProvider(tp))
	conn := dial(test, l, time.Second)
	require.NoError(test, conn.Send(message.New(message.Say, "alice", "hi", nil)))
	_, err := conn.Receive(context.Background())
	require.NoError(test, err)
	conn.Close()
	c.wait(test, isPart)
	l.Stop()

	spans := recorder.Ended()
	require.Len(test, spans, 2)
	frame, session := spans[0], spans[1]
	assert.Equal(test, "chat.frame", frame.Name())
	assert.Equal(test, "chat.session", session.Name())
	assert.Equal(test, session.SpanContext().SpanID(), frame.Parent().SpanID())
	assert.Contains(test, frame.Attributes(), attribute.String("chat.sender", "alice"))
	assert.Contains(test, frame.Attributes(), attribute.String("chat.command", "Say"))
	assert.Contains(test, session.Attributes(), attribute.String("chat.part", "left"))
}

func TestListener_ConcurrentSessions(test *testing.T) {
	l := startListener(test, WithAddress("127.0.0.1"))
	conns := []*wire.Conn{dial(test, l, time.Second), dial(test, l, time.Second), dial(test, l, time.Second)}

	// the last connection is served while the others are idle
	for i := len(conns) - 1; i >= 0; i-- {
		body := strconv.Itoa(i)
		require.NoError(test, conns[i].Send(message.New(message.Say, "peer", body, nil)))
		response, err := conns[i].Receive(context.Background())
		require.NoError(test, err)
		assert.Equal(test, body, response.Body)
	}
	assert.Equal(test, 3, l.Sessions())
}

func TestListener_PeerDisconnected(test *testing.T) {
	c := newCollector(test)
	l := startListener(test, WithAddress("127.0.0.1"), WithNotifier(c.queue))
	conn := dial(test, l, time.Second)
	c.wait(test, isState(event.StateConnected))

	require.NoError(test, conn.Close())
	c.wait(test, func(e event.Event) bool {
		s, ok := e.(event.StatusEvent)
		return ok && s.Text == "Disconnected: "+s.Peer
	})
	part := c.wait(test, isPart).(event.PartEvent)
	assert.Equal(test, event.PartActionLeft, part.Action)
}

func TestListener_Timeout(test *testing.T) {
	c := newCollector(test)
	l := startListener(test, WithAddress("127.0.0.1"), WithNotifier(c.queue), WithTimeout(50*time.Millisecond))
	dial(test, l, time.Second)

	status := c.wait(test, func(e event.Event) bool {
		s, ok := e.(event.StatusEvent)
		return ok && s.Err != nil
	}).(event.StatusEvent)
	assert.ErrorIs(test, status.Err, wire.ErrTimeout)
	assert.Equal(test, "Timeout: "+status.Peer, status.Text)
	part := c.wait(test, isPart).(event.PartEvent)
	assert.Equal(test, event.PartActionTimeout, part.Action)
}

func TestListener_MalformedFrame(test *testing.T) {
	c := newCollector(test)
	l := startListener(test, WithAddress("127.0.0.1"), WithNotifier(c.queue))
	conn, err := net.DialTimeout("tcp", l.Addr().String(), time.Second)
	require.NoError(test, err)
	defer conn.Close()

	_, err = conn.Write([]byte{3, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0x7F})
	require.NoError(test, err)
	status := c.wait(test, func(e event.Event) bool {
		s, ok := e.(event.StatusEvent)
		return ok && s.Err != nil
	}).(event.StatusEvent)
	assert.ErrorIs(test, status.Err, message.ErrTooLarge)

	// the session survives the dropped frame
	framed := wire.NewConn(conn, time.Second, 0)
	require.NoError(test, framed.Send(message.New(message.Say, "alice", "still here", nil)))
	response, err := framed.Receive(context.Background())
	require.NoError(test, err)
	assert.Equal(test, "still here", response.Body)
}

func TestListener_StopReleasesSessions(test *testing.T) {
	c := newCollector(test)
	l := startListener(test, WithAddress("127.0.0.1"), WithNotifier(c.queue), WithTimeout(time.Minute))
	conn := dial(test, l, time.Second)
	c.wait(test, isState(event.StateConnected))

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Stop()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		test.Fatal("Stop is blocked by idle session")
	}
	part := c.wait(test, isPart).(event.PartEvent)
	assert.Equal(test, event.PartActionStopped, part.Action)
	assert.Equal(test, 0, l.Sessions())

	_, err := conn.Receive(context.Background())
	assert.ErrorIs(test, err, wire.ErrDisconnected)
}

func TestListener_IPv6Only(test *testing.T) {
	l, err := New(echo, WithFamily(IPv6), WithAddress("::1"))
	require.NoError(test, err)
	if err := l.Start(); err != nil {
		test.Skip("IPv6 loopback is not available:", err)
	}
	defer l.Stop()
	assert.Equal(test, "tcp", l.Addr().Network())

	conn := dial(test, l, time.Second)
	require.NoError(test, conn.Send(message.New(message.Say, "alice", "v6", nil)))
	response, err := conn.Receive(context.Background())
	require.NoError(test, err)
	assert.Equal(test, "v6", response.Body)

	// the same port is still free for IPv4 listener
	v4, err := New(echo, WithFamily(IPv4), WithPort(l.Port()))
	require.NoError(test, err)
	require.NoError(test, v4.Start())
	v4.Stop()
}
