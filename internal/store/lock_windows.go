//go:build windows

package store

import "golang.org/x/sys/windows"

// tryLock attempts to acquire an exclusive lock without blocking.
// LockFileEx with LOCKFILE_FAIL_IMMEDIATELY locks one byte at offset 0.
func (l *writeLocker) tryLock() error {
	ol := new(windows.Overlapped)
	return windows.LockFileEx(
		windows.Handle(l.lockFile.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0,
		1,
		0,
		ol,
	)
}

// unlock releases the exclusive lock.
func (l *writeLocker) unlock() {
	if l.lockFile == nil {
		return
	}
	ol := new(windows.Overlapped)
	windows.UnlockFileEx(
		windows.Handle(l.lockFile.Fd()),
		0,
		1,
		0,
		ol,
	)
}
