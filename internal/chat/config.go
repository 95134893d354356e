package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wtask/p2pchat/internal/chat/listener"
)

// Family - address families served by the peer.
type Family int

const (
	_ Family = iota
	// Dual - IPv4 and IPv6-only listeners on the same port.
	Dual
	// IPv4 - IPv4 listener only.
	IPv4
	// IPv6 - IPv6-only listener.
	IPv6
)

// ParseFamily - parses "dual", "ipv4" or "ipv6", case insensitive.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dual", "":
		return Dual, nil
	case "ipv4", "4":
		return IPv4, nil
	case "ipv6", "6":
		return IPv6, nil
	default:
		return 0, fmt.Errorf("chat.ParseFamily: unknown address family %q", s)
	}
}

func (f Family) String() string {
	switch f {
	case Dual:
		return "dual"
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// listenerFamilies - families of listeners to start, IPv4 goes first.
func (f Family) listenerFamilies() []listener.Family {
	switch f {
	case IPv4:
		return []listener.Family{listener.IPv4}
	case IPv6:
		return []listener.Family{listener.IPv6}
	default:
		return []listener.Family{listener.IPv4, listener.IPv6}
	}
}

// Config - peer configuration.
type Config struct {
	// Address - bind the address, any address when empty. Applies to single family peer only.
	Address string
	// Port - bind the port, zero means ephemeral port chosen by OS.
	Port int
	// Timeout - connect, read and write timeout.
	Timeout time.Duration
	// Family - address families to listen.
	Family Family
	// DisplayName - local user name, used as sender of acknowledgements.
	DisplayName string
	// IconPath - local icon file sent on registration.
	IconPath string
	// IconsDir - folder of registered peer icons.
	IconsDir string
}

// DefaultConfig - returns configuration with default values.
func DefaultConfig() Config {
	return Config{
		Port:     2001,
		Timeout:  30 * time.Second,
		Family:   Dual,
		IconsDir: "icons",
	}
}

// Validate - checks configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port (%d)", c.Port))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid timeout (%v)", c.Timeout))
	}
	if c.Family != Dual && c.Family != IPv4 && c.Family != IPv6 {
		errs = append(errs, fmt.Errorf("invalid address family (%d)", int(c.Family)))
	}
	if c.Family == Dual && c.Address != "" {
		errs = append(errs, errors.New("bind address requires single address family"))
	}
	if c.IconsDir == "" {
		errs = append(errs, errors.New("icons folder is not set"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("chat.Config: %w", err)
	}
	return nil
}
