package domain

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	err := ioutil.WriteFile(path, []byte(content), 0644)
	assert.Nil(t, err)
}

func TestGenerationPath(t *testing.T) {
	assert.Equal(t, "/var/log/app.log.1", GenerationPath("/var/log/app.log", 0, CompressionNone))
	assert.Equal(t, "/var/log/app.log.2.gz", GenerationPath("/var/log/app.log", 1, CompressionGzip))
	assert.Equal(t, "/var/log/app.log.3.xz", GenerationPath("/var/log/app.log", 2, CompressionXz))
}

func TestScanGenerations(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")

	writeFile(t, live, "live")
	writeFile(t, live+".1", "first")
	writeFile(t, live+".2.gz", "second")
	writeFile(t, live+".3.xz", "third")

	// foreign files sharing the prefix must be left alone
	writeFile(t, live+".bak", "foreign")
	writeFile(t, live+".0", "foreign")
	writeFile(t, live+".2020-01-01", "foreign")

	generations, err := ScanGenerations(live)

	assert.Nil(t, err)
	assert.Len(t, generations, 3)

	assert.Equal(t, 0, generations[0].Index)
	assert.Equal(t, live+".1", generations[0].Path)
	assert.Equal(t, CompressionNone, generations[0].Compression)
	assert.False(t, generations[0].Compressed())

	assert.Equal(t, 1, generations[1].Index)
	assert.Equal(t, CompressionGzip, generations[1].Compression)
	assert.True(t, generations[1].Compressed())

	assert.Equal(t, 2, generations[2].Index)
	assert.Equal(t, CompressionXz, generations[2].Compression)

	assert.Equal(t, int64(len("first")), generations[0].SizeBytes)
}

func TestScanGenerations_Empty(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	generations, err := ScanGenerations(filepath.Join(dir, "app.log"))

	assert.Nil(t, err)
	assert.Len(t, generations, 0)
}

func TestScanGenerations_OrderedByIndex(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")

	writeFile(t, live+".10.gz", "tenth")
	writeFile(t, live+".2.gz", "second")
	writeFile(t, live+".1", "first")

	generations, err := ScanGenerations(live)

	assert.Nil(t, err)
	assert.Len(t, generations, 3)
	assert.Equal(t, 0, generations[0].Index)
	assert.Equal(t, 1, generations[1].Index)
	assert.Equal(t, 9, generations[2].Index)
}
