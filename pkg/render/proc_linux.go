//go:build linux

package render

import "syscall"

// childAttr puts the renderer in its own process group and has the kernel
// kill it if the overlay dies without cleaning up.
func childAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}
