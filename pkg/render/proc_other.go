//go:build !linux

package render

import "syscall"

// childAttr puts the renderer in its own process group.
func childAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
