// Package command computes responses for received chat frames.
package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/wtask/p2pchat/internal/chat/message"
)

const (
	// TokenNow - Say body replaced with local date and time.
	TokenNow = ":Now"
	// TokenMe - Say body replaced with sender name.
	TokenMe = ":Me"

	// InvalidMessage - response body for unsupported commands.
	InvalidMessage = "Invalid message"

	// TimeLayout - short date and time layout used for TokenNow.
	TimeLayout = "2006/01/02 15:04"
)

// ErrInvalidCommand - command can't be routed. Never returned by Route, reported as InvalidMessage body.
var ErrInvalidCommand = errors.New("command: invalid command")

// Registrar - registers clients announced with Register command.
type Registrar interface {
	Register(message.Message) (string, error)
}

// Route - computes Acknowledge response for incoming message.
// Register command is passed to registry, registration error is described in response body.
func Route(in message.Message, registry Registrar, displayName string) message.Message {
	return Router{Registry: registry, DisplayName: displayName}.Route(in)
}

// Router - routes incoming messages, implements listener.Handler.
type Router struct {
	Registry    Registrar
	DisplayName string
	// Now - clock, time.Now when nil
	Now func() time.Time
}

// Handle - same as Route.
func (r Router) Handle(in message.Message) message.Message {
	return r.Route(in)
}

// Route - computes Acknowledge response for incoming message.
func (r Router) Route(in message.Message) message.Message {
	body, err := r.body(in)
	if err != nil {
		body = describe(err)
	}
	return message.New(message.Acknowledge, r.DisplayName, body, nil)
}

func (r Router) body(in message.Message) (string, error) {
	switch in.Command {
	case message.Register:
		if r.Registry == nil {
			return "", errors.New("registration is not supported")
		}
		return r.Registry.Register(in)
	case message.Say:
		switch in.Body {
		case TokenNow:
			return r.now().Format(TimeLayout), nil
		case TokenMe:
			return in.Sender, nil
		default:
			return in.Body, nil
		}
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidCommand, in.Command)
	}
}

func (r Router) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func describe(err error) string {
	if errors.Is(err, ErrInvalidCommand) {
		return InvalidMessage
	}
	return err.Error()
}
