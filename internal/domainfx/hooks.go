package domainfx

import (
	docker "github.com/docker/docker/client"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/yurykabanov/logrotd/pkg/domain"
	"github.com/yurykabanov/logrotd/pkg/hook"
)

type HookConfig struct {
	Name      string   `mapstructure:"name"`
	Kind      string   `mapstructure:"kind"`
	Command   []string `mapstructure:"command"`
	Container string   `mapstructure:"container"`
	Signal    string   `mapstructure:"signal"`
}

func LoadHookConfigs(v *viper.Viper) ([]HookConfig, error) {
	var hooks []HookConfig

	err := v.UnmarshalKey("hooks", &hooks)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to unmarshal hooks")
	}

	return hooks, nil
}

// HookRegistry builds the reopen signaler from configured hooks. Policies
// reference hooks by name; an unknown kind or a docker hook without a docker
// connection is a startup error, not something to discover mid-rotation.
func HookRegistry(
	logger *logrus.Logger,
	configs []HookConfig,
	dockerClient *docker.Client,
) (*hook.Registry, error) {
	hooks := make(map[string]hook.Hook, len(configs))

	for _, c := range configs {
		if c.Name == "" {
			return nil, &domain.ConfigError{Reason: "hook name must not be empty"}
		}

		if _, ok := hooks[c.Name]; ok {
			return nil, &domain.ConfigError{Reason: "duplicate hook name: " + c.Name}
		}

		switch c.Kind {
		case "command":
			if len(c.Command) == 0 {
				return nil, &domain.ConfigError{Reason: "hook " + c.Name + ": command must not be empty"}
			}

			hooks[c.Name] = &hook.CommandHook{Command: c.Command}

		case "docker-signal":
			if dockerClient == nil {
				return nil, &domain.ConfigError{Reason: "hook " + c.Name + ": docker.host is not configured"}
			}

			if c.Container == "" {
				return nil, &domain.ConfigError{Reason: "hook " + c.Name + ": container must not be empty"}
			}

			hooks[c.Name] = &hook.DockerSignalHook{
				Docker:    dockerClient,
				Container: c.Container,
				Signal:    c.Signal,
			}

		default:
			return nil, &domain.ConfigError{Reason: "hook " + c.Name + ": unknown kind: " + c.Kind}
		}
	}

	return hook.NewRegistry(logger, hooks), nil
}
