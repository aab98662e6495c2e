package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, int32(16), cfg.Database.MaxConns)
	assert.Equal(t, 30*time.Second, cfg.Database.MaxConnIdleTime)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "UTC", cfg.Agency.Timezone)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caseflow.yaml")
	body := []byte("database:\n  url: postgres://file@localhost/caseflow\n  max_conns: 4\nagency:\n  timezone: America/Chicago\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("CASEFLOW_DATABASE_URL", "postgres://env@localhost/caseflow")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env@localhost/caseflow", cfg.Database.URL)
	assert.Equal(t, int32(4), cfg.Database.MaxConns)

	loc, err := cfg.Agency.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", loc.String())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CASEFLOW_AGENCY_TIMEZONE", "Mars/Olympus")
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("CASEFLOW_AGENCY_TIMEZONE", "UTC")
	t.Setenv("CASEFLOW_LOG_LEVEL", "verbose")
	_, err = Load("")
	require.Error(t, err)
}
