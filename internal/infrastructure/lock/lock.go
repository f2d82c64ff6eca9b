// Package lock provides advisory inter-process file locks with bounded
// acquisition time.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"anvil.dev/cli/internal/core/domain"
)

// Mode selects shared (reader) or exclusive (writer) locking.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

func (m Mode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "shared"
}

const pollInterval = 25 * time.Millisecond

// FileLock is a held lock. Release it exactly once.
type FileLock struct {
	file *os.File
	mode Mode
}

// Acquire takes the lock on path, creating the file if needed. It polls
// until the lock is granted, ctx ends or timeout elapses; the timeout
// surfaces as domain.ErrTimeout.
func Acquire(ctx context.Context, path string, mode Mode, timeout time.Duration) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, domain.NewError(domain.ErrPersistence, "lock", path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, domain.NewError(domain.ErrPersistence, "lock", path, err)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := tryLock(f, mode)
		if err != nil {
			f.Close()
			return nil, domain.NewError(domain.ErrPersistence, "lock", path, err)
		}
		if ok {
			return &FileLock{file: f, mode: mode}, nil
		}
		if !time.Now().Before(deadline) {
			f.Close()
			return nil, domain.NewError(domain.ErrTimeout, "lock", path,
				fmt.Errorf("%s lock not acquired within %s", mode, timeout))
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Mode returns the mode the lock is held in.
func (l *FileLock) Mode() Mode { return l.mode }

// Release unlocks and closes the lock file.
func (l *FileLock) Release() error {
	err := unlock(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	return err
}
