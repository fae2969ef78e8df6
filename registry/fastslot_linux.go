//go:build linux

package registry

import "syscall"

// currentThreadID returns the kernel thread id of the calling OS thread.
// Callers must have already called runtime.LockOSThread so the returned id
// stays valid for the duration of the pinned section.
func currentThreadID() uint64 {
	return uint64(syscall.Gettid())
}
