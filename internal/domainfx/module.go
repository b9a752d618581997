package domainfx

import (
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(PolicyStoreProvider),
	fx.Provide(LoadHookConfigs),
	fx.Provide(HookRegistry),
	fx.Provide(NewCron),
	fx.Provide(Inspector),
	fx.Provide(CompressorRegistry),
	fx.Provide(LockManagerConfigProvider),
	fx.Provide(LockManager),
	fx.Provide(ArchiveNotifier),
	fx.Provide(RotationEngine),
	fx.Provide(RetentionPruner),
	fx.Provide(RotationManagerConfigProvider),
	fx.Provide(RotationManager),
	fx.Invoke(RunRotationManager),
)
