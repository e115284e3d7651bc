// Package config loads runtime configuration for the CLI and the runtime
// it drives from environment variables, via a Load()-returns-populated-struct
// entrypoint rather than a flag/viper layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Balchandar/intentusnet/pkg/compliance"
)

// AccessMode gates whether the current process may mutate persisted
// state (WAL, records, locks, idempotency index) or only read it.
type AccessMode string

const (
	ModeReadWrite AccessMode = "read_write"
	ModeReadOnly  AccessMode = "read_only"
)

// Config holds the process-wide settings read once at startup.
type Config struct {
	AuthToken      string
	Mode           AccessMode
	AutoConfirm    bool
	BaseDir        string
	LogLevel       string
	ComplianceMode compliance.Mode

	// ComplianceProfilePath, if set, names a YAML profile (see
	// compliance.LoadProfile) that supplies the compliance mode and, for
	// REGULATED mode, the signing key id and redaction field list —
	// letting an operator hand-author one descriptor per environment
	// instead of setting INTENTUSNET_COMPLIANCE_MODE plus flags.
	ComplianceProfilePath string
}

// Layout is the fixed on-disk directory structure rooted at BaseDir.
type Layout struct {
	WALDir         string
	RecordsDir     string
	LocksDir       string
	IdempotencyDir string
}

// Layout derives the fixed <baseDir>/{wal,records,locks,idempotency}
// subdirectories from cfg.BaseDir.
func (c *Config) Layout() Layout {
	return Layout{
		WALDir:         filepath.Join(c.BaseDir, "wal"),
		RecordsDir:     filepath.Join(c.BaseDir, "records"),
		LocksDir:       filepath.Join(c.BaseDir, "locks"),
		IdempotencyDir: filepath.Join(c.BaseDir, "idempotency"),
	}
}

// IdempotencyIndexPath is the single file backing pkg/idempotency.Index.
func (l Layout) IdempotencyIndexPath() string {
	return filepath.Join(l.IdempotencyDir, "idempotency_index.json")
}

// Load reads configuration from environment variables, defaulting every
// field to a value that lets the CLI boot in a fresh directory with no env
// vars set at all.
func Load() (*Config, error) {
	mode := AccessMode(os.Getenv("INTENTUSNET_MODE"))
	if mode == "" {
		mode = ModeReadWrite
	}
	if mode != ModeReadWrite && mode != ModeReadOnly {
		return nil, fmt.Errorf("config: INTENTUSNET_MODE must be %q or %q, got %q", ModeReadWrite, ModeReadOnly, mode)
	}

	logLevel := os.Getenv("INTENTUSNET_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	baseDir := os.Getenv("INTENTUSNET_BASE_DIR")
	if baseDir == "" {
		baseDir = "./intentusnet-data"
	}

	complianceModeStr := os.Getenv("INTENTUSNET_COMPLIANCE_MODE")
	if complianceModeStr == "" {
		complianceModeStr = string(compliance.ModeDevelopment)
	}
	complianceMode, err := compliance.ParseMode(complianceModeStr)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &Config{
		AuthToken:             os.Getenv("INTENTUSNET_AUTH_TOKEN"),
		Mode:                  mode,
		AutoConfirm:           os.Getenv("INTENTUSNET_AUTO_CONFIRM") == "1",
		BaseDir:               baseDir,
		LogLevel:              logLevel,
		ComplianceMode:        complianceMode,
		ComplianceProfilePath: os.Getenv("INTENTUSNET_COMPLIANCE_PROFILE"),
	}, nil
}
