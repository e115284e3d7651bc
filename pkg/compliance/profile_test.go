package compliance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadProfile_RegulatedWithRedactionFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile_regulated.yaml")
	body := "mode: REGULATED\nsigning_key_id: key-prod-1\nredaction_fields:\n  - payload.ssn\n  - payload.creditCard\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	require.Equal(t, ModeRegulated, p.Mode)
	require.Equal(t, "key-prod-1", p.SigningKeyID)
	require.Equal(t, []string{"payload.ssn", "payload.creditCard"}, p.RedactionFields)
}

func TestLoadProfile_RejectsUnknownMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile_bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: BOGUS\n"), 0o644))

	_, err := LoadProfile(path)
	require.Error(t, err)
}

func TestLoadProfile_MissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
