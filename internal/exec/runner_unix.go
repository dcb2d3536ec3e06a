//go:build unix

package exec

import "syscall"

// defaultSysProcAttr puts the child in its own process group so a timeout
// kill reaches grandchildren as well.
func defaultSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}
