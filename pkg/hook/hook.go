package hook

import (
	"context"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/logrotd/pkg/appcontext"
	"github.com/yurykabanov/logrotd/pkg/domain"
)

const defaultHookTimeout = 30 * time.Second

// Hook asks one writer to reopen its log file after rotation. How that
// happens (running a reload command, signaling a container) is the hook's
// business; the rotation engine only knows hook identifiers.
type Hook interface {
	Invoke(ctx context.Context) error
}

// Registry is the reopen signaler: it maps the hook identifiers referenced
// by policies to their configured implementations. A failed hook surfaces a
// SignalError; the rotation that triggered it stands.
type Registry struct {
	logger logrus.FieldLogger
	hooks  map[string]Hook
}

func NewRegistry(logger logrus.FieldLogger, hooks map[string]Hook) *Registry {
	if hooks == nil {
		hooks = map[string]Hook{}
	}

	return &Registry{
		logger: logger,
		hooks:  hooks,
	}
}

func (r *Registry) Notify(ctx context.Context, name string) error {
	logger := appcontext.LoggerFromContext(r.logger, ctx)

	h, ok := r.hooks[name]
	if !ok {
		return &domain.SignalError{Hook: name, Cause: errors.New("hook is not configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultHookTimeout)
	defer cancel()

	logger.WithField("hook", name).Debug("Invoking post-rotate hook")

	if err := h.Invoke(ctx); err != nil {
		return &domain.SignalError{Hook: name, Cause: err}
	}

	return nil
}

// CommandHook runs an external reload command, e.g. "systemctl reload nginx"
// or a kill -HUP wrapper script.
type CommandHook struct {
	Command []string
}

func (h *CommandHook) Invoke(ctx context.Context) error {
	if len(h.Command) == 0 {
		return errors.New("hook command is empty")
	}

	cmd := exec.CommandContext(ctx, h.Command[0], h.Command[1:]...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "command failed: %s", string(out))
	}

	return nil
}

type containerKiller interface {
	ContainerKill(ctx context.Context, containerID, signal string) error
}

// DockerSignalHook delivers a signal to a container whose process holds the
// rotated log open, the containerized equivalent of kill -HUP.
type DockerSignalHook struct {
	Docker    containerKiller
	Container string
	Signal    string
}

func (h *DockerSignalHook) Invoke(ctx context.Context) error {
	if h.Docker == nil {
		return errors.New("docker client is not configured")
	}

	sig := h.Signal
	if sig == "" {
		sig = "SIGHUP"
	}

	return h.Docker.ContainerKill(ctx, h.Container, sig)
}
