//go:build windows

package tools

import "golang.org/x/sys/windows"

// IsPrivileged reports whether the process runs elevated
func IsPrivileged() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
