package domain

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/logrotd/pkg/appcontext"
)

// Rotation manager is the core of logrotd. It drives periodic evaluation
// cycles over all watched paths, rotates qualifying files, notifies their
// writers and prunes expired generations. Cycles never overlap: a tick that
// arrives while a cycle is running is held until the cycle finishes.
type RotationManager struct {
	logger logrus.FieldLogger

	store    *PolicyStore
	resolver pathResolver
	engine   rotationEngine
	pruner   retentionPruner
	signaler reopenSignaler
	locks    pathLocker
	repo     RotationRepository

	cron cron

	cronSpec      string
	historyMaxAge time.Duration

	cycles   chan time.Time
	reload   chan os.Signal
	quit     chan struct{}
	finished chan struct{}
}

type RotationManagerConfig struct {
	CronSpec      string
	HistoryMaxAge time.Duration
}

func NewRotationManager(
	logger logrus.FieldLogger,
	config RotationManagerConfig,
	store *PolicyStore,
	resolver pathResolver,
	engine rotationEngine,
	pruner retentionPruner,
	signaler reopenSignaler,
	locks pathLocker,
	repo RotationRepository,
	cron cron,
) *RotationManager {
	return &RotationManager{
		logger: logger,

		store:    store,
		resolver: resolver,
		engine:   engine,
		pruner:   pruner,
		signaler: signaler,
		locks:    locks,
		repo:     repo,

		cron: cron,

		cronSpec:      config.CronSpec,
		historyMaxAge: config.HistoryMaxAge,

		cycles:   make(chan time.Time, 1),
		reload:   make(chan os.Signal, 1),
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

type pathResolver interface {
	Resolve(pattern string) ([]string, error)
	Stat(path string) (FileStat, error)
}

type rotationEngine interface {
	Evaluate(wf WatchedFile, stat FileStat, generations []Generation) bool
	Rotate(ctx context.Context, wf WatchedFile) (Generation, error)
}

type retentionPruner interface {
	Prune(ctx context.Context, wf WatchedFile) ([]Generation, []error)
}

type reopenSignaler interface {
	Notify(ctx context.Context, hook string) error
}

type pathLocker interface {
	Acquire(path string) (release func(), err error)
}

type RotationRepository interface {
	Create(context.Context, Rotation) (Rotation, error)
	FindLatestPerPolicy(context.Context) ([]Rotation, error)
	DeleteOlderThan(context.Context, time.Time) (int64, error)
}

type cron interface {
	AddFunc(spec string, cmd func()) error
	Start()
	Stop()
}

func (m *RotationManager) Run() {
	defer close(m.finished)

	err := m.cron.AddFunc(m.cronSpec, m.dispatchCycle)
	if err != nil {
		m.logger.WithField("spec", m.cronSpec).Fatalf("Invalid cron spec: '%s'", m.cronSpec)
	}

	signal.Notify(m.reload, syscall.SIGHUP)
	defer signal.Stop(m.reload)

	m.logger.Debug("Starting cron")
	m.cron.Start()

	// run one cycle immediately so freshly started daemons do not wait a
	// full interval before the first evaluation
	m.dispatchCycle()

	for {
		select {
		case <-m.quit:
			return

		case <-m.reload:
			m.reloadPolicies()

		case t := <-m.cycles:
			m.runCycle(context.Background(), t)
		}
	}
}

// Stop halts the schedule and waits for an in-flight cycle to finish its
// rotation sequence, bounded by ctx.
func (m *RotationManager) Stop(ctx context.Context) error {
	m.cron.Stop()
	close(m.quit)

	select {
	case <-m.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *RotationManager) dispatchCycle() {
	t := time.Now()

	select {
	case m.cycles <- t:
		m.logger.WithField("dispatched_at", t).Debug("Dispatched evaluation cycle")
	default:
		// a cycle is already pending: the tick is coalesced into it, not lost
		m.logger.WithField("dispatched_at", t).Debug("Evaluation cycle already pending")
	}
}

func (m *RotationManager) reloadPolicies() {
	m.logger.Info("Reloading policies")

	if err := m.store.Reload(); err != nil {
		m.logger.WithError(err).Error("Unable to reload policies, keeping previous policy set")
		return
	}

	m.logger.WithField("total_policies", len(m.store.Snapshot())).Info("Policies reloaded")
}

func (m *RotationManager) runCycle(ctx context.Context, startedAt time.Time) {
	snapshot := m.store.Snapshot()

	m.logger.WithField("total_policies", len(snapshot)).Debug("Starting evaluation cycle")

	for _, policy := range snapshot {
		m.evaluatePolicy(appcontext.WithPolicyName(ctx, policy.Name), policy)
	}

	m.sweepHistory(ctx)

	m.logger.WithField("duration_ms", time.Since(startedAt).Nanoseconds()/1e6).
		Debug("Evaluation cycle finished")
}

func (m *RotationManager) evaluatePolicy(ctx context.Context, policy RotationPolicy) {
	logger := appcontext.LoggerFromContext(m.logger, ctx)

	paths, err := m.resolver.Resolve(policy.PathPattern)
	if err != nil {
		logger.WithError(err).Error("Unable to resolve path pattern")
		return
	}

	// a pattern matching zero files is a no-op cycle, not an error
	for _, path := range paths {
		m.handlePath(appcontext.WithFilePath(ctx, path), policy, path)
	}
}

// handlePath runs one file through the evaluate, rotate, signal, prune
// sequence. Errors are isolated here: one inaccessible path never aborts
// evaluation of the remaining watched set.
func (m *RotationManager) handlePath(ctx context.Context, policy RotationPolicy, path string) {
	logger := appcontext.LoggerFromContext(m.logger, ctx)

	release, err := m.locks.Acquire(path)
	if err != nil {
		logger.WithError(err).Warn("Path is locked by another rotation, skipping this cycle")
		return
	}
	defer release()

	stat, err := m.resolver.Stat(path)
	if err != nil {
		if _, ok := err.(*NotFoundError); ok {
			logger.Debug("File vanished between resolve and stat, skipping this cycle")
		} else {
			logger.WithError(err).Error("Unable to stat file")
		}
		return
	}

	generations, err := ScanGenerations(path)
	if err != nil {
		logger.WithError(err).Error("Unable to scan generations")
		return
	}

	wf := WatchedFile{
		Path:   path,
		Policy: policy,

		LastKnownSize:  stat.SizeBytes,
		LastKnownInode: stat.Inode,
	}

	if !m.engine.Evaluate(wf, stat, generations) {
		return
	}

	logger.WithField("size", stat.SizeBytes).Info("File qualifies for rotation")

	m.rotateAndRecord(ctx, wf)

	if removed, errs := m.pruner.Prune(ctx, wf); len(removed) > 0 || len(errs) > 0 {
		logger.WithFields(logrus.Fields{
			"removed_generations": len(removed),
			"prune_errors":        len(errs),
		}).Debug("Pruned expired generations")
	}
}

func (m *RotationManager) rotateAndRecord(ctx context.Context, wf WatchedFile) {
	logger := appcontext.LoggerFromContext(m.logger, ctx)

	startAt := time.Now()

	rotation := Rotation{
		Policy:    wf.Policy.Name,
		Path:      wf.Path,
		CreatedAt: startAt,
	}

	head, err := m.engine.Rotate(ctx, wf)
	if err != nil {
		logger.WithError(err).Error("Unable to rotate file")

		rotation.Status = RotationStatusFailure
		rotation.Error = err.Error()
		rotation.DurationMs = time.Since(startAt).Nanoseconds() / 1e6

		m.record(ctx, rotation)
		return
	}

	rotation.Status = RotationStatusSuccess
	rotation.GenerationPath = head.Path
	rotation.SizeBytes = head.SizeBytes

	if wf.Policy.PostRotateHook != "" {
		if err := m.signaler.Notify(ctx, wf.Policy.PostRotateHook); err != nil {
			// the file is rotated; only the writer's reopen failed
			logger.WithError(err).Error("Post-rotate hook failed")

			rotation.Status = RotationStatusSignalFailed
			rotation.Error = err.Error()
		}
	}

	rotation.DurationMs = time.Since(startAt).Nanoseconds() / 1e6

	m.record(ctx, rotation)
}

func (m *RotationManager) record(ctx context.Context, rotation Rotation) {
	logger := appcontext.LoggerFromContext(m.logger, ctx)

	if _, err := m.repo.Create(ctx, rotation); err != nil {
		logger.WithError(err).Error("Unable to record rotation")
	}
}

func (m *RotationManager) sweepHistory(ctx context.Context) {
	if m.historyMaxAge <= 0 {
		return
	}

	n, err := m.repo.DeleteOlderThan(ctx, time.Now().Add(-m.historyMaxAge))
	if err != nil {
		m.logger.WithError(err).Error("Unable to sweep rotation history")
		return
	}

	if n > 0 {
		m.logger.WithField("total_swept", n).Debug("Swept old rotation history")
	}
}
