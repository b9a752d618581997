package domain

import (
	"compress/gzip"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// region test compressors
type gzipTestCompressor struct {
}

func (c *gzipTestCompressor) Compress(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	w := gzip.NewWriter(out)

	if _, err := io.Copy(w, in); err != nil {
		return err
	}

	return w.Close()
}

type testCompressorResolver struct {
	failing bool
}

func (r *testCompressorResolver) For(c Compression) (Compressor, error) {
	if r.failing {
		return nil, errors.New("no compressor")
	}

	if c == CompressionGzip {
		return &gzipTestCompressor{}, nil
	}

	return nil, errors.Errorf("no compressor registered for %q", c)
}

// endregion

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

func testEngine() *RotationEngine {
	return NewRotationEngine(discardLogger(), &testCompressorResolver{})
}

func gunzipFile(t *testing.T, path string) []byte {
	t.Helper()

	f, err := os.Open(path)
	assert.Nil(t, err)
	defer f.Close()

	r, err := gzip.NewReader(f)
	assert.Nil(t, err)

	content, err := ioutil.ReadAll(r)
	assert.Nil(t, err)

	return content
}

func fileInode(t *testing.T, path string) uint64 {
	t.Helper()

	info, err := os.Stat(path)
	assert.Nil(t, err)

	sys, ok := info.Sys().(*syscall.Stat_t)
	assert.True(t, ok)

	return sys.Ino
}

// region Test: Evaluate
func TestEngine_Evaluate_SizeTrigger(t *testing.T) {
	engine := testEngine()

	wf := WatchedFile{Path: "/var/log/app.log", Policy: RotationPolicy{MaxSize: 1000}}

	assert.False(t, engine.Evaluate(wf, FileStat{SizeBytes: 999}, nil))
	assert.True(t, engine.Evaluate(wf, FileStat{SizeBytes: 1000}, nil))
	assert.True(t, engine.Evaluate(wf, FileStat{SizeBytes: 1200}, nil))
}

func TestEngine_Evaluate_AgeTrigger(t *testing.T) {
	engine := testEngine()

	wf := WatchedFile{Path: "/var/log/app.log", Policy: RotationPolicy{MaxAge: time.Hour}}

	fresh := FileStat{ModTime: time.Now().Add(-time.Minute)}
	stale := FileStat{ModTime: time.Now().Add(-2 * time.Hour)}

	assert.False(t, engine.Evaluate(wf, fresh, nil))
	assert.True(t, engine.Evaluate(wf, stale, nil))
}

func TestEngine_Evaluate_AgeMeasuredFromLastRotation(t *testing.T) {
	engine := testEngine()

	wf := WatchedFile{Path: "/var/log/app.log", Policy: RotationPolicy{MaxAge: time.Hour}}

	// the live file was written to recently, but the last rotation happened
	// two hours ago: the age trigger fires
	stat := FileStat{ModTime: time.Now().Add(-time.Minute)}
	generations := []Generation{
		{Index: 0, Path: "/var/log/app.log.1", CreatedAt: time.Now().Add(-2 * time.Hour)},
	}

	assert.True(t, engine.Evaluate(wf, stat, generations))
}

func TestEngine_Evaluate_EitherTriggerFires(t *testing.T) {
	engine := testEngine()

	wf := WatchedFile{Path: "/var/log/app.log", Policy: RotationPolicy{MaxSize: 1000, MaxAge: time.Hour}}

	smallButStale := FileStat{SizeBytes: 10, ModTime: time.Now().Add(-2 * time.Hour)}
	bigButFresh := FileStat{SizeBytes: 5000, ModTime: time.Now().Add(-time.Minute)}
	smallAndFresh := FileStat{SizeBytes: 10, ModTime: time.Now().Add(-time.Minute)}

	assert.True(t, engine.Evaluate(wf, smallButStale, nil))
	assert.True(t, engine.Evaluate(wf, bigButFresh, nil))
	assert.False(t, engine.Evaluate(wf, smallAndFresh, nil))
}

func TestEngine_Evaluate_Idempotent(t *testing.T) {
	engine := testEngine()

	wf := WatchedFile{Path: "/var/log/app.log", Policy: RotationPolicy{MaxSize: 1000}}
	stat := FileStat{SizeBytes: 1200}

	first := engine.Evaluate(wf, stat, nil)

	for i := 0; i < 10; i++ {
		assert.Equal(t, first, engine.Evaluate(wf, stat, nil))
	}
}

// endregion

// region Test: Rotate
func TestEngine_Rotate_FirstCycle(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")
	content := make([]byte, 1200)
	for i := range content {
		content[i] = byte('a' + i%26)
	}

	err = ioutil.WriteFile(live, content, 0644)
	assert.Nil(t, err)

	engine := testEngine()

	wf := WatchedFile{
		Path: live,
		Policy: RotationPolicy{
			Name:           "app",
			PathPattern:    live,
			MaxSize:        1000,
			RetentionCount: 2,
			Compression:    CompressionGzip,
		},
	}

	head, err := engine.Rotate(context.Background(), wf)

	assert.Nil(t, err)
	assert.Equal(t, 0, head.Index)
	assert.Equal(t, live+".1.gz", head.Path)
	assert.Equal(t, CompressionGzip, head.Compression)

	// the live path holds a fresh empty file
	info, err := os.Stat(live)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), info.Size())

	// the compressed generation round-trips to the original content
	assert.Equal(t, content, gunzipFile(t, live+".1.gz"))

	// the plain intermediate is gone
	_, err = os.Stat(live + ".1")
	assert.True(t, os.IsNotExist(err))
}

func TestEngine_Rotate_SecondCycleRenumbers(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")

	engine := testEngine()

	wf := WatchedFile{
		Path: live,
		Policy: RotationPolicy{
			Name:           "app",
			PathPattern:    live,
			MaxSize:        1000,
			RetentionCount: 2,
			Compression:    CompressionGzip,
		},
	}

	err = ioutil.WriteFile(live, []byte("first cycle content"), 0644)
	assert.Nil(t, err)

	_, err = engine.Rotate(context.Background(), wf)
	assert.Nil(t, err)

	err = ioutil.WriteFile(live, []byte("second cycle content"), 0644)
	assert.Nil(t, err)

	_, err = engine.Rotate(context.Background(), wf)
	assert.Nil(t, err)

	assert.Equal(t, []byte("second cycle content"), gunzipFile(t, live+".1.gz"))
	assert.Equal(t, []byte("first cycle content"), gunzipFile(t, live+".2.gz"))
}

func TestEngine_Rotate_DelayCompress(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")

	engine := testEngine()

	wf := WatchedFile{
		Path: live,
		Policy: RotationPolicy{
			Name:           "app",
			PathPattern:    live,
			MaxSize:        10,
			RetentionCount: 3,
			Compression:    CompressionGzip,
			DelayCompress:  true,
		},
	}

	err = ioutil.WriteFile(live, []byte("first cycle content"), 0644)
	assert.Nil(t, err)

	head, err := engine.Rotate(context.Background(), wf)
	assert.Nil(t, err)

	// the most recent rotation stays plain for one cycle
	assert.Equal(t, live+".1", head.Path)
	plain, err := ioutil.ReadFile(live + ".1")
	assert.Nil(t, err)
	assert.Equal(t, []byte("first cycle content"), plain)

	err = ioutil.WriteFile(live, []byte("second cycle content"), 0644)
	assert.Nil(t, err)

	_, err = engine.Rotate(context.Background(), wf)
	assert.Nil(t, err)

	// previous cycle's rotation got compressed one slot down
	assert.Equal(t, []byte("first cycle content"), gunzipFile(t, live+".2.gz"))

	plain, err = ioutil.ReadFile(live + ".1")
	assert.Nil(t, err)
	assert.Equal(t, []byte("second cycle content"), plain)
}

func TestEngine_Rotate_CopyTruncateKeepsInode(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")

	err = ioutil.WriteFile(live, []byte("writer keeps this file open"), 0644)
	assert.Nil(t, err)

	inodeBefore := fileInode(t, live)

	engine := testEngine()

	wf := WatchedFile{
		Path: live,
		Policy: RotationPolicy{
			Name:           "app",
			PathPattern:    live,
			MaxSize:        10,
			RetentionCount: 2,
			Compression:    CompressionNone,
			CopyTruncate:   true,
		},
	}

	head, err := engine.Rotate(context.Background(), wf)

	assert.Nil(t, err)

	// truncated in place: same inode, zero length
	assert.Equal(t, inodeBefore, fileInode(t, live))

	info, err := os.Stat(live)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), info.Size())

	// the generation holds exactly the bytes observed at copy time
	copied, err := ioutil.ReadFile(head.Path)
	assert.Nil(t, err)
	assert.Equal(t, []byte("writer keeps this file open"), copied)
}

func TestEngine_Rotate_MissingLiveFileRollsBack(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")

	// generations exist but the live file vanished
	writeFile(t, live+".1", "first")
	writeFile(t, live+".2.gz", "second")

	engine := testEngine()

	wf := WatchedFile{
		Path: live,
		Policy: RotationPolicy{
			Name:           "app",
			PathPattern:    live,
			MaxSize:        10,
			RetentionCount: 5,
			Compression:    CompressionGzip,
		},
	}

	_, err = engine.Rotate(context.Background(), wf)

	assert.NotNil(t, err)
	assert.IsType(t, &RotationError{}, err)

	// the shifted generations were renamed back
	generations, scanErr := ScanGenerations(live)
	assert.Nil(t, scanErr)
	assert.Len(t, generations, 2)
	assert.Equal(t, live+".1", generations[0].Path)
	assert.Equal(t, live+".2.gz", generations[1].Path)
}

func TestEngine_Rotate_CompressionFailureKeepsRotation(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")

	err = ioutil.WriteFile(live, []byte("some content"), 0644)
	assert.Nil(t, err)

	engine := NewRotationEngine(discardLogger(), &testCompressorResolver{failing: true})

	wf := WatchedFile{
		Path: live,
		Policy: RotationPolicy{
			Name:           "app",
			PathPattern:    live,
			MaxSize:        10,
			RetentionCount: 2,
			Compression:    CompressionGzip,
		},
	}

	head, err := engine.Rotate(context.Background(), wf)

	// rotation stands, the head generation simply stays uncompressed
	assert.Nil(t, err)
	assert.Equal(t, live+".1", head.Path)

	info, statErr := os.Stat(live)
	assert.Nil(t, statErr)
	assert.Equal(t, int64(0), info.Size())
}

func TestEngine_Rotate_NewFilePermissions(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")

	err = ioutil.WriteFile(live, []byte("some content"), 0644)
	assert.Nil(t, err)

	engine := testEngine()

	wf := WatchedFile{
		Path: live,
		Policy: RotationPolicy{
			Name:           "app",
			PathPattern:    live,
			MaxSize:        10,
			RetentionCount: 2,
			Compression:    CompressionNone,
			CreateMode:     0600,
		},
	}

	_, err = engine.Rotate(context.Background(), wf)
	assert.Nil(t, err)

	info, err := os.Stat(live)
	assert.Nil(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

// endregion
