package domain

import "fmt"

// ConfigError marks a malformed policy at load time. Fatal to startup,
// recoverable at reload: the previously active policy set stays in effect.
type ConfigError struct {
	Policy string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Policy == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid policy %q: %s", e.Policy, e.Reason)
}

// NotFoundError marks a target file that vanished between resolve and stat.
// Non-fatal: the file is skipped for this cycle.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// PermissionError marks a create/rename/truncate denied by the OS.
// Surfaced per watched file, never halts the remaining set.
type PermissionError struct {
	Path string
	Op   string
	Err  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// RotationError marks a failure during the rotate sequence after partial
// mutation. The engine has already attempted a best-effort rollback so that
// exactly one file claims the live path; the error is surfaced without retry.
type RotationError struct {
	Path  string
	Cause error
}

func (e *RotationError) Error() string {
	return fmt.Sprintf("rotation of %s failed: %v", e.Path, e.Cause)
}

func (e *RotationError) Unwrap() error { return e.Cause }

// SignalError marks a failed post-rotate hook. The rotation itself is still
// considered successful: only the writer's reopen failed.
type SignalError struct {
	Hook  string
	Cause error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("post-rotate hook %q failed: %v", e.Hook, e.Cause)
}

func (e *SignalError) Unwrap() error { return e.Cause }

// PruneError marks a failed deletion of an old generation. The generation is
// left in place; pruning is idempotent and retried next cycle.
type PruneError struct {
	Path  string
	Cause error
}

func (e *PruneError) Error() string {
	return fmt.Sprintf("pruning of %s failed: %v", e.Path, e.Cause)
}

func (e *PruneError) Unwrap() error { return e.Cause }
