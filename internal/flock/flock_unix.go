//go:build !windows

package flock

import "syscall"

// Lock blocks until this process holds the exclusive flock(2) on fd. Two
// stackup runs in the same project queue here before touching an artifact.
func Lock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_EX)
}

// Unlock drops the flock(2) taken by Lock.
func Unlock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_UN)
}
