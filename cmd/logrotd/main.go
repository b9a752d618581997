package main

import (
	"time"

	"go.uber.org/fx"

	"github.com/yurykabanov/logrotd/internal/configfx"
	"github.com/yurykabanov/logrotd/internal/dockerfx"
	"github.com/yurykabanov/logrotd/internal/domainfx"
	"github.com/yurykabanov/logrotd/internal/loggerfx"
	"github.com/yurykabanov/logrotd/internal/metricsfx"
	"github.com/yurykabanov/logrotd/internal/sqlfx"
)

func main() {
	logger := loggerfx.Logger()

	app := fx.New(
		fx.StartTimeout(15*time.Second),
		fx.StopTimeout(15*time.Second),

		fx.Logger(logger),

		loggerfx.Module,
		configfx.Module,
		sqlfx.Module,
		dockerfx.Module,
		metricsfx.Module,
		domainfx.Module,
	)

	app.Run()
}
