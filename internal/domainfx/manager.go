package domainfx

import (
	"context"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/yurykabanov/logrotd/pkg/compress"
	"github.com/yurykabanov/logrotd/pkg/domain"
	"github.com/yurykabanov/logrotd/pkg/hook"
	"github.com/yurykabanov/logrotd/pkg/inspect"
	"github.com/yurykabanov/logrotd/pkg/lock"
)

const (
	ConfigSchedulerCronSpec = "scheduler.cron_spec"
	ConfigHistoryMaxAge     = "history.max_age"
	ConfigLockDirectory     = "lock.directory"

	DefaultCronSpec      = "@every 1m"
	DefaultLockDirectory = "/var/lock/logrotd"
)

func NewCron() *cron.Cron {
	return cron.New()
}

func Inspector() *inspect.Inspector {
	return inspect.New()
}

func CompressorRegistry() *compress.Registry {
	return compress.NewRegistry()
}

type LockManagerConfig struct {
	Directory string
}

func LockManagerConfigProvider(v *viper.Viper) *LockManagerConfig {
	dir := v.GetString(ConfigLockDirectory)
	if dir == "" {
		dir = DefaultLockDirectory
	}

	return &LockManagerConfig{
		Directory: dir,
	}
}

func LockManager(config *LockManagerConfig) *lock.Manager {
	return lock.New(config.Directory)
}

func RotationEngine(
	logger *logrus.Logger,
	compressors *compress.Registry,
) *domain.RotationEngine {
	return domain.NewRotationEngine(logger, compressors)
}

// archiveEventLogger emits the "generation about to be deleted" event as a
// structured log record. An external archiver tails these to copy artifacts
// out before deletion; the pruner never waits for it.
type archiveEventLogger struct {
	logger logrus.FieldLogger
}

func (n *archiveEventLogger) GenerationExpiring(policy domain.RotationPolicy, g domain.Generation) {
	n.logger.WithFields(logrus.Fields{
		"policy":                policy.Name,
		"generation_path":       g.Path,
		"eligible_for_archival": true,
	}).Info("Generation is about to be deleted")
}

func ArchiveNotifier(logger *logrus.Logger) domain.ArchiveNotifier {
	return &archiveEventLogger{logger: logger}
}

func RetentionPruner(
	logger *logrus.Logger,
	notifier domain.ArchiveNotifier,
) *domain.RetentionPruner {
	return domain.NewRetentionPruner(logger, notifier)
}

func RotationManagerConfigProvider(v *viper.Viper) domain.RotationManagerConfig {
	spec := v.GetString(ConfigSchedulerCronSpec)
	if spec == "" {
		spec = DefaultCronSpec
	}

	return domain.RotationManagerConfig{
		CronSpec:      spec,
		HistoryMaxAge: v.GetDuration(ConfigHistoryMaxAge),
	}
}

func RotationManager(
	logger *logrus.Logger,
	config domain.RotationManagerConfig,
	store *domain.PolicyStore,
	inspector *inspect.Inspector,
	engine *domain.RotationEngine,
	pruner *domain.RetentionPruner,
	signaler *hook.Registry,
	locks *lock.Manager,
	repository domain.RotationRepository,
	cron *cron.Cron,
) *domain.RotationManager {
	return domain.NewRotationManager(logger, config, store, inspector, engine, pruner, signaler, locks, repository, cron)
}

func RunRotationManager(lc fx.Lifecycle, manager *domain.RotationManager) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go manager.Run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return manager.Stop(ctx)
		},
	})
}
