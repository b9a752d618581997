package domain

import (
	"os"
	"sync"
	"time"
)

type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionXz   Compression = "xz"
)

// RotationPolicy is an immutable configuration unit describing when one or
// more files (matched by PathPattern) are rotated and how long their rotated
// generations are retained.
type RotationPolicy struct {
	Name        string `mapstructure:"name"`
	PathPattern string `mapstructure:"path_pattern"`

	// MaxSize qualifies a file for rotation once its size reaches the
	// threshold. Zero disables the size trigger.
	MaxSize int64 `mapstructure:"max_size"`

	// MaxAge qualifies a file for rotation once the time since its last
	// rotation reaches the threshold. Zero disables the age trigger.
	// When both triggers are set, either one fires rotation.
	MaxAge time.Duration `mapstructure:"max_age"`

	RetentionCount int           `mapstructure:"retention_count"`
	RetentionAge   time.Duration `mapstructure:"retention_age"`

	Compression   Compression `mapstructure:"compression"`
	DelayCompress bool        `mapstructure:"delay_compress"`

	// PostRotateHook names a hook registered with the signaler. Empty means
	// no writer notification is performed after rotation.
	PostRotateHook string `mapstructure:"post_rotate_hook"`

	// CopyTruncate selects copy-then-truncate rotation for writers that
	// cannot be asked to reopen their file descriptor. The window between
	// copy and truncate is lossy; that trade-off is inherent to the mode.
	CopyTruncate bool `mapstructure:"copy_truncate"`

	// CreateMode is the permission mode of the fresh live file created
	// after a rename-based rotation. Zero means 0644.
	CreateMode os.FileMode `mapstructure:"create_mode"`
}

func (p RotationPolicy) FileMode() os.FileMode {
	if p.CreateMode == 0 {
		return 0644
	}
	return p.CreateMode
}

func (p RotationPolicy) Validate() error {
	if p.Name == "" {
		return &ConfigError{Reason: "policy name must not be empty"}
	}
	if p.PathPattern == "" {
		return &ConfigError{Policy: p.Name, Reason: "path_pattern must not be empty"}
	}
	if p.MaxSize < 0 {
		return &ConfigError{Policy: p.Name, Reason: "max_size must not be negative"}
	}
	if p.MaxAge < 0 {
		return &ConfigError{Policy: p.Name, Reason: "max_age must not be negative"}
	}
	if p.MaxSize == 0 && p.MaxAge == 0 {
		return &ConfigError{Policy: p.Name, Reason: "at least one of max_size, max_age must be set"}
	}
	if p.RetentionCount < 1 {
		return &ConfigError{Policy: p.Name, Reason: "retention_count must be at least 1"}
	}
	if p.RetentionAge < 0 {
		return &ConfigError{Policy: p.Name, Reason: "retention_age must not be negative"}
	}

	switch p.Compression {
	case CompressionNone, CompressionGzip, CompressionXz:
	case "":
		return &ConfigError{Policy: p.Name, Reason: "compression must be one of none, gzip, xz"}
	default:
		return &ConfigError{Policy: p.Name, Reason: "unknown compression: " + string(p.Compression)}
	}

	if p.DelayCompress && p.Compression == CompressionNone {
		return &ConfigError{Policy: p.Name, Reason: "delay_compress requires compression"}
	}

	if p.CopyTruncate && p.PostRotateHook != "" {
		return &ConfigError{Policy: p.Name, Reason: "copy_truncate and post_rotate_hook are mutually exclusive"}
	}

	return nil
}

func ValidatePolicies(policies []RotationPolicy) error {
	seen := make(map[string]struct{}, len(policies))

	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return err
		}

		if _, ok := seen[p.PathPattern]; ok {
			return &ConfigError{Policy: p.Name, Reason: "duplicate path_pattern: " + p.PathPattern}
		}
		seen[p.PathPattern] = struct{}{}
	}

	return nil
}

// PolicyStore holds the active, validated policy list. Reload re-runs the
// loader and atomically swaps the list; a failed reload keeps the previous
// list active. Callers take a Snapshot at cycle start so an in-flight
// rotation always sees the policy set it started with.
type PolicyStore struct {
	load func() ([]RotationPolicy, error)

	mu     sync.RWMutex
	active []RotationPolicy
}

func NewPolicyStore(load func() ([]RotationPolicy, error)) (*PolicyStore, error) {
	s := &PolicyStore{load: load}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *PolicyStore) Reload() error {
	policies, err := s.load()
	if err != nil {
		return err
	}

	if err := ValidatePolicies(policies); err != nil {
		return err
	}

	s.mu.Lock()
	s.active = policies
	s.mu.Unlock()

	return nil
}

func (s *PolicyStore) Snapshot() []RotationPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]RotationPolicy, len(s.active))
	copy(snapshot, s.active)

	return snapshot
}
