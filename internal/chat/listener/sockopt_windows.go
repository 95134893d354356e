//go:build windows

package listener

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// ipv6Only - disables dual-stack on IPv6 socket before bind.
func ipv6Only(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.IPPROTO_IPV6, windows.IPV6_V6ONLY, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
