package lock

import (
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
)

// Manager hands out per-path advisory locks backed by flock(2) on lockfiles
// under a shared directory, so two daemon instances never rotate the same
// file concurrently. A lock held elsewhere is reported as an error; the
// caller skips the path for this cycle.
type Manager struct {
	dir string
}

func New(dir string) *Manager {
	return &Manager{
		dir: dir,
	}
}

func (m *Manager) Acquire(path string) (func(), error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "unable to create lock directory")
	}

	f, err := os.OpenFile(m.lockPath(path), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open lock file")
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "path %s is locked", path)
	}

	// pid is informational only; flock is the actual guard
	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())

	release := func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}

	return release, nil
}

func (m *Manager) lockPath(path string) string {
	sum := sha1.Sum([]byte(path))

	return filepath.Join(m.dir, fmt.Sprintf("%x.lock", sum))
}
