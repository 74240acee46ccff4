//go:build !windows

package tools

import "golang.org/x/sys/unix"

// IsPrivileged reports whether the process may open raw sockets
func IsPrivileged() bool {
	return unix.Geteuid() == 0
}
