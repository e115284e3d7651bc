package config_test

import (
	"testing"

	"github.com/Balchandar/intentusnet/pkg/compliance"
	"github.com/Balchandar/intentusnet/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("INTENTUSNET_AUTH_TOKEN", "")
	t.Setenv("INTENTUSNET_MODE", "")
	t.Setenv("INTENTUSNET_AUTO_CONFIRM", "")
	t.Setenv("INTENTUSNET_BASE_DIR", "")
	t.Setenv("INTENTUSNET_LOG_LEVEL", "")
	t.Setenv("INTENTUSNET_COMPLIANCE_MODE", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, config.ModeReadWrite, cfg.Mode)
	require.Equal(t, "INFO", cfg.LogLevel)
	require.False(t, cfg.AutoConfirm)
	require.Equal(t, compliance.ModeDevelopment, cfg.ComplianceMode)
	require.Empty(t, cfg.AuthToken)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("INTENTUSNET_AUTH_TOKEN", "secret-token")
	t.Setenv("INTENTUSNET_MODE", "read_only")
	t.Setenv("INTENTUSNET_AUTO_CONFIRM", "1")
	t.Setenv("INTENTUSNET_BASE_DIR", "/var/lib/intentusnet")
	t.Setenv("INTENTUSNET_LOG_LEVEL", "DEBUG")
	t.Setenv("INTENTUSNET_COMPLIANCE_MODE", "STANDARD")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "secret-token", cfg.AuthToken)
	require.Equal(t, config.ModeReadOnly, cfg.Mode)
	require.True(t, cfg.AutoConfirm)
	require.Equal(t, "/var/lib/intentusnet", cfg.BaseDir)
	require.Equal(t, "DEBUG", cfg.LogLevel)
	require.Equal(t, compliance.ModeStandard, cfg.ComplianceMode)
}

func TestLoad_RejectsUnknownMode(t *testing.T) {
	t.Setenv("INTENTUSNET_MODE", "bogus")
	_, err := config.Load()
	require.Error(t, err)
}

func TestLayout_DerivesFixedSubdirectories(t *testing.T) {
	cfg := &config.Config{BaseDir: "/data"}
	layout := cfg.Layout()
	require.Equal(t, "/data/wal", layout.WALDir)
	require.Equal(t, "/data/records", layout.RecordsDir)
	require.Equal(t, "/data/locks", layout.LocksDir)
	require.Equal(t, "/data/idempotency", layout.IdempotencyDir)
	require.Equal(t, "/data/idempotency/idempotency_index.json", layout.IdempotencyIndexPath())
}
