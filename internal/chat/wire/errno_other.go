//go:build !unix

package wire

import "syscall"

func errnoName(errno syscall.Errno) string {
	return errno.Error()
}
