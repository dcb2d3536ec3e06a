//go:build windows

package exec

import "syscall"

// defaultSysProcAttr returns nil on Windows, which has no process groups
// in the Unix sense.
func defaultSysProcAttr() *syscall.SysProcAttr {
	return nil
}
