//go:build unix

package listener

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// ipv6Only - disables dual-stack on IPv6 socket before bind.
func ipv6Only(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
