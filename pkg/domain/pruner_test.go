package domain

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// region archiveNotifierMock
type archiveNotifierMock struct {
	mock.Mock
}

func (m *archiveNotifierMock) GenerationExpiring(policy RotationPolicy, g Generation) {
	m.Called(policy, g)
}

// endregion

func TestPruner_RetentionCount(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")

	writeFile(t, live, "live")
	writeFile(t, live+".1.gz", "first")
	writeFile(t, live+".2.gz", "second")
	writeFile(t, live+".3.gz", "third")

	pruner := NewRetentionPruner(discardLogger(), nil)

	wf := WatchedFile{
		Path: live,
		Policy: RotationPolicy{
			Name:           "app",
			RetentionCount: 2,
		},
	}

	removed, errs := pruner.Prune(context.Background(), wf)

	assert.Len(t, errs, 0)
	assert.Len(t, removed, 1)
	assert.Equal(t, live+".3.gz", removed[0].Path)

	_, err = os.Stat(live + ".3.gz")
	assert.True(t, os.IsNotExist(err))

	assert.FileExists(t, live+".1.gz")
	assert.FileExists(t, live+".2.gz")
}

func TestPruner_RetentionAge(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")

	writeFile(t, live+".1.gz", "recent")
	writeFile(t, live+".2.gz", "recent")
	writeFile(t, live+".3.gz", "ancient")
	writeFile(t, live+".4.gz", "recent")

	// generation index 3 is well under the count limit but 8 days old
	eightDaysAgo := time.Now().Add(-8 * 24 * time.Hour)
	err = os.Chtimes(live+".3.gz", eightDaysAgo, eightDaysAgo)
	assert.Nil(t, err)

	pruner := NewRetentionPruner(discardLogger(), nil)

	wf := WatchedFile{
		Path: live,
		Policy: RotationPolicy{
			Name:           "app",
			RetentionCount: 1000,
			RetentionAge:   7 * 24 * time.Hour,
		},
	}

	removed, errs := pruner.Prune(context.Background(), wf)

	assert.Len(t, errs, 0)
	assert.Len(t, removed, 1)
	assert.Equal(t, live+".3.gz", removed[0].Path)

	assert.FileExists(t, live+".1.gz")
	assert.FileExists(t, live+".2.gz")
	assert.FileExists(t, live+".4.gz")
}

func TestPruner_NothingToPrune(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")

	writeFile(t, live+".1.gz", "first")

	pruner := NewRetentionPruner(discardLogger(), nil)

	wf := WatchedFile{
		Path: live,
		Policy: RotationPolicy{
			Name:           "app",
			RetentionCount: 2,
		},
	}

	removed, errs := pruner.Prune(context.Background(), wf)

	assert.Len(t, errs, 0)
	assert.Len(t, removed, 0)
	assert.FileExists(t, live+".1.gz")
}

func TestPruner_NotifiesBeforeDeletion(t *testing.T) {
	dir, err := ioutil.TempDir("", "logrotd")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	live := filepath.Join(dir, "app.log")

	writeFile(t, live+".1.gz", "first")
	writeFile(t, live+".2.gz", "second")

	notifier := &archiveNotifierMock{}
	notifier.On("GenerationExpiring", mock.AnythingOfType("RotationPolicy"), mock.AnythingOfType("Generation"))

	pruner := NewRetentionPruner(discardLogger(), notifier)

	wf := WatchedFile{
		Path: live,
		Policy: RotationPolicy{
			Name:           "app",
			RetentionCount: 1,
		},
	}

	removed, errs := pruner.Prune(context.Background(), wf)

	assert.Len(t, errs, 0)
	assert.Len(t, removed, 1)

	notifier.AssertNumberOfCalls(t, "GenerationExpiring", 1)
}
