package domain

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/logrotd/pkg/appcontext"
)

// FileStat is the subset of file metadata the engine decides on.
type FileStat struct {
	SizeBytes int64
	ModTime   time.Time
	Inode     uint64
}

// WatchedFile is one concrete file resolved from a policy's path pattern.
// It is recreated every cycle from the resolver output and discarded when
// the path disappears.
type WatchedFile struct {
	Path   string
	Policy RotationPolicy

	LastKnownSize  int64
	LastKnownInode uint64
}

// Compressor compresses src into dst. Implementations live in pkg/compress.
type Compressor interface {
	Compress(src, dst string) error
}

type compressorResolver interface {
	For(c Compression) (Compressor, error)
}

// RotationEngine performs the rotate sequence for a single watched file:
// renumber existing generations highest-first, move the live file to the
// head of the chain, recreate the live path, compress per policy. At every
// point of the sequence exactly one file claims the live path name.
type RotationEngine struct {
	logger logrus.FieldLogger

	compressors compressorResolver
}

func NewRotationEngine(
	logger logrus.FieldLogger,
	compressors compressorResolver,
) *RotationEngine {
	return &RotationEngine{
		logger:      logger,
		compressors: compressors,
	}
}

// Evaluate reports whether the file qualifies for rotation under its policy.
// Configured triggers combine with OR: any single satisfied condition fires.
// The age trigger measures from the previous rotation (the head generation's
// timestamp) or, before any rotation exists, from the file's mtime.
//
// Evaluate is pure: repeated calls with the same stat and ledger return the
// same answer.
func (e *RotationEngine) Evaluate(wf WatchedFile, stat FileStat, generations []Generation) bool {
	policy := wf.Policy

	if policy.MaxSize > 0 && stat.SizeBytes >= policy.MaxSize {
		return true
	}

	if policy.MaxAge > 0 {
		basis := stat.ModTime
		if len(generations) > 0 {
			basis = generations[0].CreatedAt
		}

		if time.Since(basis) >= policy.MaxAge {
			return true
		}
	}

	return false
}

// Rotate runs the rotation sequence and returns the freshly created head
// generation. On failure it rolls back best-effort so that exactly one file
// remains at the live path, then surfaces a RotationError; retrying is the
// scheduler's decision, next cycle.
func (e *RotationEngine) Rotate(ctx context.Context, wf WatchedFile) (Generation, error) {
	logger := appcontext.LoggerFromContext(e.logger, ctx)

	generations, err := ScanGenerations(wf.Path)
	if err != nil {
		return Generation{}, &RotationError{Path: wf.Path, Cause: err}
	}

	shifted, err := e.shiftGenerations(wf.Path, generations)
	if err != nil {
		e.unshiftGenerations(logger, shifted)
		return Generation{}, &RotationError{Path: wf.Path, Cause: err}
	}

	var head Generation
	if wf.Policy.CopyTruncate {
		head, err = e.copyTruncate(logger, wf, shifted)
	} else {
		head, err = e.renameAndRecreate(logger, wf, shifted)
	}
	if err != nil {
		return Generation{}, err
	}

	head, err = e.compressPerPolicy(wf, head)
	if err != nil {
		// The rotation itself is complete at this point: the live path holds
		// a fresh file and the chain is renumbered. A failed compression
		// leaves the head generation uncompressed for the next cycle.
		logger.WithError(err).Error("Unable to compress rotated generation")
	}

	logger.WithFields(logrus.Fields{
		"generation": head.Path,
		"size":       head.SizeBytes,
	}).Info("File rotated")

	return head, nil
}

type renamePair struct {
	from string
	to   string
}

// shiftGenerations renames every existing generation one slot down the
// chain, highest index first to avoid collisions. It returns the performed
// renames so a failed sequence can be unwound.
func (e *RotationEngine) shiftGenerations(livePath string, generations []Generation) ([]renamePair, error) {
	var shifted []renamePair

	for i := len(generations) - 1; i >= 0; i-- {
		g := generations[i]
		target := GenerationPath(livePath, g.Index+1, g.Compression)

		if err := os.Rename(g.Path, target); err != nil {
			return shifted, wrapFsError("rename", g.Path, err)
		}

		shifted = append(shifted, renamePair{from: g.Path, to: target})
	}

	return shifted, nil
}

func (e *RotationEngine) unshiftGenerations(logger logrus.FieldLogger, shifted []renamePair) {
	for i := len(shifted) - 1; i >= 0; i-- {
		if err := os.Rename(shifted[i].to, shifted[i].from); err != nil {
			logger.WithError(err).WithField("generation", shifted[i].to).
				Error("Unable to restore generation during rollback")
		}
	}
}

// renameAndRecreate moves the live file to the head of the chain and creates
// a fresh empty file at the live path. If the create fails the live file is
// renamed back, so the system never holds zero files under the live name.
func (e *RotationEngine) renameAndRecreate(logger logrus.FieldLogger, wf WatchedFile, shifted []renamePair) (Generation, error) {
	headPath := GenerationPath(wf.Path, 0, CompressionNone)

	if err := os.Rename(wf.Path, headPath); err != nil {
		e.unshiftGenerations(logger, shifted)
		return Generation{}, &RotationError{Path: wf.Path, Cause: wrapFsError("rename", wf.Path, err)}
	}

	if err := e.createLiveFile(wf.Path, wf.Policy.FileMode()); err != nil {
		if rbErr := os.Rename(headPath, wf.Path); rbErr != nil {
			logger.WithError(rbErr).Error("Unable to restore live file during rollback")
		} else {
			e.unshiftGenerations(logger, shifted)
		}

		return Generation{}, &RotationError{Path: wf.Path, Cause: err}
	}

	return e.statGeneration(headPath, 0)
}

// copyTruncate copies the live file's current content to the head of the
// chain, then truncates the live file in place so the writer's descriptor
// stays valid. Bytes appended between copy and truncate are lost; that
// window is the documented cost of not being able to signal the writer.
func (e *RotationEngine) copyTruncate(logger logrus.FieldLogger, wf WatchedFile, shifted []renamePair) (Generation, error) {
	headPath := GenerationPath(wf.Path, 0, CompressionNone)

	if err := copyFileContents(wf.Path, headPath, wf.Policy.FileMode()); err != nil {
		_ = os.Remove(headPath)
		e.unshiftGenerations(logger, shifted)

		return Generation{}, &RotationError{Path: wf.Path, Cause: err}
	}

	if err := os.Truncate(wf.Path, 0); err != nil {
		_ = os.Remove(headPath)
		e.unshiftGenerations(logger, shifted)

		return Generation{}, &RotationError{Path: wf.Path, Cause: wrapFsError("truncate", wf.Path, err)}
	}

	return e.statGeneration(headPath, 0)
}

// compressPerPolicy applies the policy's compression to the chain head, or,
// with delay_compress, to the previous cycle's rotation one slot down while
// the head stays plain for one cycle.
func (e *RotationEngine) compressPerPolicy(wf WatchedFile, head Generation) (Generation, error) {
	policy := wf.Policy

	if policy.Compression == CompressionNone {
		return head, nil
	}

	compressor, err := e.compressors.For(policy.Compression)
	if err != nil {
		return head, err
	}

	if !policy.DelayCompress {
		target := GenerationPath(wf.Path, 0, policy.Compression)

		if err := compressInPlace(compressor, head.Path, target); err != nil {
			return head, err
		}

		return e.statGeneration(target, 0)
	}

	// The previous head moved to slot 1 during the shift; compress it now
	// if the last cycle left it plain.
	previous := GenerationPath(wf.Path, 1, CompressionNone)
	if _, err := os.Stat(previous); err == nil {
		target := GenerationPath(wf.Path, 1, policy.Compression)

		if err := compressInPlace(compressor, previous, target); err != nil {
			return head, err
		}
	}

	return head, nil
}

func (e *RotationEngine) createLiveFile(path string, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return wrapFsError("create", path, err)
	}

	// The umask may have masked bits out of the requested mode.
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return wrapFsError("chmod", path, err)
	}

	return f.Close()
}

func (e *RotationEngine) statGeneration(path string, index int) (Generation, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Generation{}, &RotationError{Path: path, Cause: err}
	}

	c := CompressionNone
	switch {
	case strings.HasSuffix(path, ".gz"):
		c = CompressionGzip
	case strings.HasSuffix(path, ".xz"):
		c = CompressionXz
	}

	return Generation{
		Index:       index,
		Path:        path,
		SizeBytes:   info.Size(),
		CreatedAt:   info.ModTime(),
		Compression: c,
	}, nil
}

func compressInPlace(compressor Compressor, src, dst string) error {
	if err := compressor.Compress(src, dst); err != nil {
		_ = os.Remove(dst)
		return errors.Wrapf(err, "unable to compress %s", src)
	}

	return os.Remove(src)
}

func copyFileContents(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return wrapFsError("open", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return wrapFsError("create", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "unable to copy %s", src)
	}

	if err := out.Sync(); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "unable to sync %s", dst)
	}

	return out.Close()
}

func wrapFsError(op, path string, err error) error {
	if os.IsPermission(err) {
		return &PermissionError{Path: path, Op: op, Err: err}
	}
	if os.IsNotExist(err) {
		return &NotFoundError{Path: path}
	}

	return errors.Wrapf(err, "unable to %s %s", op, path)
}
