package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Sync.APIBase)
	assert.Equal(t, 5*time.Second, cfg.Sync.RefreshInterval)
	assert.Equal(t, 120, cfg.Sync.HistoryLimit)
	assert.Equal(t, ECGRefreshOnSelect, cfg.Sync.ECGRefreshMode)
	assert.Equal(t, 10*time.Second, cfg.Sync.HTTPTimeout)
	assert.Equal(t, time.Second, cfg.Sync.ManualRefreshInterval)
	assert.Equal(t, ":8090", cfg.HTTP.Addr)

	assert.False(t, cfg.Mirror.Enabled)
	assert.Equal(t, "vital-sync:patient:", cfg.Mirror.KeyPrefix)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	assert.False(t, cfg.Nudge.Enabled)
	assert.Equal(t, []string{"patient/vitals", "patient/ecg_stream"}, cfg.MQTT.Topics)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, time.Local, cfg.LabelLocation())
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("VITALSYNC_API_BASE", "https://rpm.example.com")
	t.Setenv("VITALSYNC_REFRESH_INTERVAL", "2s")
	t.Setenv("VITALSYNC_HISTORY_LIMIT", "60")
	t.Setenv("ECG_REFRESH_MODE", "cycle")
	t.Setenv("VITALSYNC_LABEL_TZ", "UTC")
	t.Setenv("MIRROR_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("MQTT_TOPICS", "patient/vitals")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://rpm.example.com", cfg.Sync.APIBase)
	assert.Equal(t, 2*time.Second, cfg.Sync.RefreshInterval)
	assert.Equal(t, 60, cfg.Sync.HistoryLimit)
	assert.Equal(t, ECGRefreshEveryCycle, cfg.Sync.ECGRefreshMode)
	assert.Equal(t, time.UTC, cfg.LabelLocation())
	assert.True(t, cfg.Mirror.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Nudge.Enabled)
	assert.Equal(t, []string{"patient/vitals"}, cfg.MQTT.Topics)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	os.Clearenv()
	path := filepath.Join(t.TempDir(), "vitalsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sync:
  api_base: http://backend:9000
  refresh_interval: 15s
  ecg_refresh_mode: once
http:
  addr: ":9999"
mirror:
  enabled: true
  ttl: 1m
`), 0o600))
	t.Setenv("VITALSYNC_CONFIG", path)
	t.Setenv("HTTP_ADDR", ":7000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend:9000", cfg.Sync.APIBase)
	assert.Equal(t, 15*time.Second, cfg.Sync.RefreshInterval)
	assert.Equal(t, ECGRefreshOnce, cfg.Sync.ECGRefreshMode)
	assert.Equal(t, 120, cfg.Sync.HistoryLimit, "unset keys keep defaults")
	assert.Equal(t, ":7000", cfg.HTTP.Addr, "env overrides the file")
	assert.True(t, cfg.Mirror.Enabled)
	assert.Equal(t, time.Minute, cfg.Mirror.TTL)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":  {"VITALSYNC_REFRESH_INTERVAL": "soon"},
		"bad limit":     {"VITALSYNC_HISTORY_LIMIT": "many"},
		"zero limit":    {"VITALSYNC_HISTORY_LIMIT": "0"},
		"bad ecg mode":  {"ECG_REFRESH_MODE": "sometimes"},
		"relative base": {"VITALSYNC_API_BASE": "/api"},
		"bad timezone":  {"VITALSYNC_LABEL_TZ": "Mars/Olympus"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	os.Clearenv()
	t.Setenv("VITALSYNC_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	assert.Equal(t, "test-value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default-value", getEnv("NON_EXISTENT_VAR", "default-value"))
}
