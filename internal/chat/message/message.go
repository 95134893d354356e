// Package message defines the chat frame exchanged by peers and its binary codec.
package message

import (
	"fmt"
	"strconv"
)

// Command - frame command. Stored on the wire as 2-byte signed integer.
type Command int16

const (
	// Undefined - zero command, never valid for routing.
	Undefined Command = iota
	// Acknowledge - response to any received frame.
	Acknowledge
	// Register - announces sender name and carries its icon.
	Register
	// Say - text message.
	Say
)

// Valid - reports whether c is one of the known commands (Undefined included).
func (c Command) Valid() bool {
	return c >= Undefined && c <= Say
}

func (c Command) String() string {
	switch c {
	case Undefined:
		return "Undefined"
	case Acknowledge:
		return "Acknowledge"
	case Register:
		return "Register"
	case Say:
		return "Say"
	default:
		return "Command(" + strconv.Itoa(int(c)) + ")"
	}
}

// Message - chat frame.
// Icon is nil when absent; it is only expected on Register.
type Message struct {
	Command Command
	Sender  string
	Body    string
	Icon    []byte
}

// New - builds message; zero-length icon is normalized to nil.
func New(command Command, sender, body string, icon []byte) Message {
	if len(icon) == 0 {
		icon = nil
	}
	return Message{Command: command, Sender: sender, Body: body, Icon: icon}
}

// HasIcon - reports whether the message carries icon bytes.
func (m Message) HasIcon() bool {
	return len(m.Icon) > 0
}

func (m Message) String() string {
	s := fmt.Sprintf("Command:%s, Sender:{%s}, Message:{%s}", m.Command, m.Sender, m.Body)
	if m.HasIcon() {
		s += fmt.Sprintf(", Icon:%d byte(s)", len(m.Icon))
	}
	return s
}
