package chat

import (
	"fmt"
	"net"
	"strconv"

	"github.com/wtask/p2pchat/internal/chat/event"
	"github.com/wtask/p2pchat/internal/chat/message"
)

// FormatEvent - renders event as a display line, empty line means nothing to display.
func FormatEvent(e event.Event) string {
	switch e := e.(type) {
	case event.StatusEvent:
		return fmt.Sprintf("[%s] %s", formatTime(e.NetEvent), e.Text)
	case event.MessageEvent:
		return fmt.Sprintf("[%s] %s", formatTime(e.NetEvent), formatMessage(e.Message))
	case event.PartEvent:
		return fmt.Sprintf("[%s] %s %s", formatTime(e.NetEvent), e.Peer, formatPartAction(e.Action))
	default:
		return ""
	}
}

func formatTime(e event.NetEvent) string {
	return e.OriginTime.Local().Format("15:04:05")
}

// formatMessage - formats chat message.
func formatMessage(m message.Message) string {
	switch m.Command {
	case message.Say:
		return fmt.Sprintf("%s: %s", m.Sender, m.Body)
	case message.Acknowledge:
		return fmt.Sprintf("%s> %s", m.Sender, m.Body)
	case message.Register:
		return fmt.Sprintf("%s registers with %s icon", m.Sender, m.Body)
	default:
		return m.String()
	}
}

// formatPartAction - returns string representation of event.PartAction.
func formatPartAction(a event.PartAction) string {
	switch a {
	case event.PartActionTimeout:
		return "has timed out"
	case event.PartActionStopped:
		return "was dropped"
	case event.PartActionFailed:
		return "has failed"
	case event.PartActionLeft:
		fallthrough
	default:
		return "has left"
	}
}

// formatAddress - formats remote endpoint.
func formatAddress(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
