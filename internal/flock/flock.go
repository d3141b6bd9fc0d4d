// Package flock serializes writers of the same file across processes.
package flock

import (
	"fmt"
	"os"
)

// With runs fn while holding an exclusive lock on path+".lock". The lock
// file is left in place: unlinking it would let a waiter that already
// opened the old inode and a newcomer that creates a fresh one both hold
// "the" lock at once.
func With(path string, fn func() error) error {
	lockPath := path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("creating lock file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := Lock(f.Fd()); err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	defer func() { _ = Unlock(f.Fd()) }()

	return fn()
}
