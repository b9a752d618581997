package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Generation is one rotated artifact of a watched file. Index 0 is the most
// recent rotation; on disk it carries the numeric suffix Index+1, so the
// chain for /var/log/app.log reads app.log.1, app.log.2.gz, app.log.3.gz, ...
// The extension reflects the compression applied to that generation.
//
// The naming convention is the only persisted state: the ledger is rebuilt
// from a directory listing, never from a separate database.
type Generation struct {
	Index       int
	Path        string
	SizeBytes   int64
	CreatedAt   time.Time
	Compression Compression
}

func (g Generation) Compressed() bool {
	return g.Compression != CompressionNone
}

func compressionExt(c Compression) string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionXz:
		return ".xz"
	default:
		return ""
	}
}

// GenerationPath returns the on-disk name for generation index of livePath.
func GenerationPath(livePath string, index int, c Compression) string {
	return fmt.Sprintf("%s.%d%s", livePath, index+1, compressionExt(c))
}

// parseGenerationSuffix parses the part after "<livePath>." into a disk
// sequence number and compression. A second return of false means the file
// is foreign to the rotation chain and must be left alone.
func parseGenerationSuffix(suffix string) (int, Compression, bool) {
	c := CompressionNone

	if strings.HasSuffix(suffix, ".gz") {
		c = CompressionGzip
		suffix = strings.TrimSuffix(suffix, ".gz")
	} else if strings.HasSuffix(suffix, ".xz") {
		c = CompressionXz
		suffix = strings.TrimSuffix(suffix, ".xz")
	}

	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 {
		return 0, CompressionNone, false
	}

	return n, c, true
}

// ScanGenerations rebuilds the generation ledger for livePath from the
// filesystem. Files matching "<livePath>.*" whose suffix does not parse as a
// generation are ignored. The result is ordered by index ascending and the
// indices are as found on disk (disk sequence minus one); gaps are possible
// after external interference and are tolerated by the renumbering pass.
func ScanGenerations(livePath string) ([]Generation, error) {
	matches, err := filepath.Glob(livePath + ".*")
	if err != nil {
		return nil, err
	}

	generations := make([]Generation, 0, len(matches))

	for _, match := range matches {
		suffix := strings.TrimPrefix(match, livePath+".")

		seq, c, ok := parseGenerationSuffix(suffix)
		if !ok {
			continue
		}

		info, err := os.Stat(match)
		if err != nil {
			// Vanished between glob and stat, somebody else is cleaning up.
			continue
		}

		generations = append(generations, Generation{
			Index:       seq - 1,
			Path:        match,
			SizeBytes:   info.Size(),
			CreatedAt:   info.ModTime(),
			Compression: c,
		})
	}

	sort.Slice(generations, func(i, j int) bool {
		return generations[i].Index < generations[j].Index
	})

	return generations, nil
}
