//go:build linux

package runner

import "syscall"

// sysProcAttr puts the child in its own process group so it can be signalled as a whole,
// and asks the kernel to SIGTERM it if this process dies first.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
