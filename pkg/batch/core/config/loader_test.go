package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const embeddedYAML = `
epiflow:
  system:
    logging:
      level: DEBUG
  fetch:
    timeout_seconds: 15
    retry:
      max_attempts: 2
  outputs:
    storage_ref: artifacts
    prefix: ${EPIFLOW_TEST_PREFIX}
  reconciliation:
    aliases:
      Eswatini: Swaziland
  adapter:
    storage:
      artifacts:
        type: local
        base_dir: out
`

func TestLoadConfig_LayersDefaultsYAMLAndEnv(t *testing.T) {
	t.Setenv("EPIFLOW_TEST_PREFIX", "run-1")
	t.Setenv("EPIFLOW_FETCH_BURST", "7")
	t.Setenv("EPIFLOW_FORECAST_METRICS", "Confirmed, Deaths")

	cfg, err := LoadConfig("", EmbeddedConfig(embeddedYAML), "")
	require.NoError(t, err)

	e := cfg.Epiflow
	assert.Equal(t, "DEBUG", e.System.Logging.Level)
	assert.Equal(t, 15, e.Fetch.TimeoutSeconds)
	assert.Equal(t, 2, e.Fetch.Retry.MaxAttempts)
	assert.Equal(t, 500, e.Fetch.Retry.InitialIntervalMillis, "untouched defaults survive")
	assert.Equal(t, 7, e.Fetch.Burst)
	assert.Equal(t, "run-1", e.Outputs.Prefix)
	assert.Equal(t, []string{"Confirmed", "Deaths"}, e.Forecast.Metrics)
	assert.Equal(t, "Swaziland", e.Reconciliation.Aliases["Eswatini"])
	assert.Equal(t, "out", e.Adapter.Storage["artifacts"]["base_dir"])
	assert.Contains(t, e.Adapter.Storage, DefaultSnapshotStorage)
}

func TestLoadConfig_ExternalFileAndEnvFile(t *testing.T) {
	dir := t.TempDir()
	external := filepath.Join(dir, "override.yaml")
	require.NoError(t, os.WriteFile(external, []byte("epiflow:\n  forecast:\n    horizon_days: 30\n"), 0o600))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("EPIFLOW_PIPELINE_NAME=fromDotEnv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("EPIFLOW_PIPELINE_NAME") })

	cfg, err := LoadConfig(envFile, nil, external)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Epiflow.Forecast.HorizonDays)
	assert.Equal(t, "fromDotEnv", cfg.Epiflow.Pipeline.Name)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	_, err := LoadConfig("", EmbeddedConfig("epiflow:\n  forecast:\n    interval_width: 1.5\n"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval_width")

	t.Setenv("EPIFLOW_FETCH_BURST", "many")
	_, err = LoadConfig("", nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EPIFLOW_FETCH_BURST")
}

func TestValidate_UnknownStorageRef(t *testing.T) {
	cfg := NewConfig()
	cfg.Epiflow.Outputs.PublishRef = "gcs-public"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gcs-public")
}
