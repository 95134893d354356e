// Package event describes notifications produced by listeners and talkers for the display layer.
package event

import (
	"time"

	"github.com/wtask/p2pchat/internal/chat/message"
)

// Source - kind of emitter.
type Source string

const (
	// SourceListener - event of listener or one of its sessions.
	SourceListener Source = "listener"
	// SourceTalker - event of outbound connection.
	SourceTalker Source = "talker"
)

// Event - any notification.
type Event interface {
	Base() NetEvent
}

// NetEvent - base event related to network endpoint.
// Session is empty for listener-wide events.
type NetEvent struct {
	Source     Source
	Session    string
	Peer       string
	OriginTime time.Time
}

// Base - implements Event.
func (e NetEvent) Base() NetEvent {
	return e
}

// State - connection or listener state.
type State int

const (
	_ State = iota
	// StateListening - listener is bound and accepts connections.
	StateListening
	// StateStopped - listener is stopped.
	StateStopped
	// StateConnected - session or talker connection is established.
	StateConnected
	// StateDisconnected - session or talker connection is over.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown state"
	}
}

// StateEvent - occurres when state of listener or connection is changed.
type StateEvent struct {
	NetEvent
	State State
}

// StatusEvent - status line for display. Err is set when the line describes a failure.
type StatusEvent struct {
	NetEvent
	Text string
	Err  error
}

// MessageEvent - occurres when frame from the outside was arrived.
// Response is the acknowledgement the listener is about to send, nil for talkers.
type MessageEvent struct {
	NetEvent
	Message  message.Message
	Response *message.Message
}

// PartAction - describes the type of parting with peer (connection).
type PartAction int

const (
	_ PartAction = iota
	// PartActionLeft - the parting is occurred due to connection was closed by peer.
	PartActionLeft
	// PartActionTimeout - the parting is occurred due to connection timeout.
	PartActionTimeout
	// PartActionStopped - the parting is occurred due to local stop.
	PartActionStopped
	// PartActionFailed - the parting is occurred due to socket failure.
	PartActionFailed
)

func (a PartAction) String() string {
	switch a {
	case PartActionLeft:
		return "left"
	case PartActionTimeout:
		return "timed out"
	case PartActionStopped:
		return "stopped"
	case PartActionFailed:
		return "failed"
	default:
		return "unknown part action"
	}
}

// PartEvent - occurres after parting with peer.
type PartEvent struct {
	NetEvent
	Action PartAction
}

// Notifier - accepts events for delivery. Push must not block.
type Notifier interface {
	Push(Event)
}

// Notify - pushes event into notifier if it is set.
func Notify(n Notifier, e Event) {
	if n == nil {
		return
	}
	n.Push(e)
}

// Stamp - returns copy of base event with current origin time.
func Stamp(base NetEvent) NetEvent {
	base.OriginTime = time.Now().UTC()
	return base
}
