package inspect

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"

	"github.com/yurykabanov/logrotd/pkg/domain"
)

// Inspector resolves path patterns to concrete files and reads the file
// metadata rotation decisions are based on.
type Inspector struct {
}

func New() *Inspector {
	return &Inspector{}
}

// Resolve expands a glob pattern to absolute paths of regular files.
// A pattern matching nothing returns an empty slice, not an error.
func (i *Inspector) Resolve(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid path pattern %q", pattern)
	}

	paths := make([]string, 0, len(matches))

	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		abs, err := filepath.Abs(match)
		if err != nil {
			continue
		}

		paths = append(paths, abs)
	}

	return paths, nil
}

// Stat reads size, mtime and inode of path. A path that vanished between
// resolve and stat yields NotFoundError: the caller skips it this cycle.
func (i *Inspector) Stat(path string) (domain.FileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.FileStat{}, &domain.NotFoundError{Path: path}
		}

		return domain.FileStat{}, errors.Wrapf(err, "unable to stat %s", path)
	}

	stat := domain.FileStat{
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}

	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		stat.Inode = sys.Ino
	}

	return stat, nil
}
