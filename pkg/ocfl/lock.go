package ocfl

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

// objectLock serializes concurrent writers to one OCFL object directory
// using an advisory flock on a sentinel file, grounded on the teacher's
// e2e lock-helper pattern (syscall.Flock over a held *os.File).
type objectLock struct {
	f *os.File
}

// lockObject acquires an exclusive flock on <objectDir>/.lock, creating
// the sentinel file if necessary. The returned lock must be released
// with unlock().
func lockObject(objectDir string) (*objectLock, error) {
	if err := os.MkdirAll(objectDir, 0o755); err != nil {
		return nil, persist.NewIOError("", "failed to create object directory", err)
	}

	path := objectDir + "/.lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, persist.NewIOError("", "failed to open object lock file", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, persist.NewIOError("", "failed to acquire object lock", err)
	}

	return &objectLock{f: f}, nil
}

func (l *objectLock) unlock() {
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	_ = l.f.Close()
}
