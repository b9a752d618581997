package domain

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/logrotd/pkg/appcontext"
)

// ArchiveNotifier is told about a generation just before it is deleted so an
// external archiver may copy it out. The pruner never waits for the archiver;
// implementations must not block.
type ArchiveNotifier interface {
	GenerationExpiring(policy RotationPolicy, generation Generation)
}

// NopArchiveNotifier is used when no archival hand-off is configured.
type NopArchiveNotifier struct{}

func (NopArchiveNotifier) GenerationExpiring(RotationPolicy, Generation) {}

// RetentionPruner deletes generations beyond the policy's retention count or
// older than its retention age, whichever is stricter. A failed deletion is
// reported and left in place; the next cycle retries it.
type RetentionPruner struct {
	logger   logrus.FieldLogger
	notifier ArchiveNotifier
}

func NewRetentionPruner(logger logrus.FieldLogger, notifier ArchiveNotifier) *RetentionPruner {
	if notifier == nil {
		notifier = NopArchiveNotifier{}
	}

	return &RetentionPruner{
		logger:   logger,
		notifier: notifier,
	}
}

// Prune removes expired generations of the watched file and returns the ones
// actually deleted. Per-generation failures are collected as PruneErrors in
// the second return; the remaining generations are still processed.
func (p *RetentionPruner) Prune(ctx context.Context, wf WatchedFile) ([]Generation, []error) {
	logger := appcontext.LoggerFromContext(p.logger, ctx)

	generations, err := ScanGenerations(wf.Path)
	if err != nil {
		return nil, []error{&PruneError{Path: wf.Path, Cause: err}}
	}

	var removed []Generation
	var errs []error

	now := time.Now()

	for _, g := range generations {
		if !p.expired(wf.Policy, g, now) {
			continue
		}

		p.notifier.GenerationExpiring(wf.Policy, g)

		if err := os.Remove(g.Path); err != nil {
			errs = append(errs, &PruneError{Path: g.Path, Cause: err})

			logger.WithError(err).WithField("generation", g.Path).
				Error("Unable to remove expired generation, will retry next cycle")
			continue
		}

		logger.WithField("generation", g.Path).Info("Removed expired generation")
		removed = append(removed, g)
	}

	return removed, errs
}

func (p *RetentionPruner) expired(policy RotationPolicy, g Generation, now time.Time) bool {
	if g.Index >= policy.RetentionCount {
		return true
	}

	if policy.RetentionAge > 0 && now.Sub(g.CreatedAt) >= policy.RetentionAge {
		return true
	}

	return false
}
