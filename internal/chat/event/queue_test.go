package event

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Order(test *testing.T) {
	out := make(chan Event)
	q := NewQueue(out)
	defer q.Close()

	const total = 100
	for i := 0; i < total; i++ {
		// consumer is not reading yet, push must not block
		q.Push(StatusEvent{NetEvent: NetEvent{Source: SourceListener}, Text: fmt.Sprint(i)})
	}
	for i := 0; i < total; i++ {
		select {
		case e := <-out:
			status, ok := e.(StatusEvent)
			require.True(test, ok)
			assert.Equal(test, fmt.Sprint(i), status.Text)
		case <-time.After(time.Second):
			test.Fatal("event", i, "was not delivered")
		}
	}
	// the last event is counted until the pump has handed it over
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(test, q.Flush(ctx))
	assert.Equal(test, 0, q.Len())
}

func TestQueue_Flush(test *testing.T) {
	out := make(chan Event, 10)
	q := NewQueue(out)
	defer q.Close()

	q.Push(StateEvent{State: StateListening})
	q.Push(StateEvent{State: StateStopped})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(test, q.Flush(ctx))
	assert.Len(test, out, 2)

	// nobody reads the channel
	blocked := NewQueue(make(chan Event))
	defer blocked.Close()
	blocked.Push(StateEvent{State: StateListening})
	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(test, blocked.Flush(ctx), context.DeadlineExceeded)
}

func TestQueue_NilOut(test *testing.T) {
	q := NewQueue(nil)
	q.Push(StateEvent{State: StateListening})
	assert.Equal(test, 0, q.Len())
	q.Close()
	q.Close()
}

func TestQueue_PushAfterClose(test *testing.T) {
	out := make(chan Event, 1)
	q := NewQueue(out)
	q.Close()
	q.Push(StateEvent{State: StateListening})
	assert.Equal(test, 0, q.Len())
	assert.Len(test, out, 0)
}

func TestPartAction_String(test *testing.T) {
	assert.Equal(test, "timed out", PartActionTimeout.String())
	assert.Equal(test, "left", PartActionLeft.String())
	assert.Equal(test, "unknown part action", PartAction(0).String())
	assert.Equal(test, "connected", StateConnected.String())
}
