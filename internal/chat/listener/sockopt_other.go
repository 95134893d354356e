//go:build !unix && !windows

package listener

import "syscall"

// ipv6Only - tcp6 sockets are IPv6-only by default on the rest of platforms.
func ipv6Only(network, address string, c syscall.RawConn) error {
	return nil
}
