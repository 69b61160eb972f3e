package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BUSSTOP_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Search.MinRadius)
	assert.Equal(t, 600, cfg.Search.MaxRadius)
	assert.Equal(t, 2, cfg.Search.StopCount)
	assert.Equal(t, 5, cfg.Search.ArrivalCount)
	assert.Equal(t, "London", cfg.Search.Region)
	assert.False(t, cfg.Search.Interleaved)
	assert.Equal(t, 0, cfg.Retry.MaxAttempts)
	assert.Equal(t, DefaultPostcodesURL, cfg.API.PostcodesURL)
	assert.Equal(t, DefaultTfLURL, cfg.API.TfLURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("BUSSTOP_CONFIG", "")
	t.Setenv("BUSSTOP_MIN_RADIUS", "200")
	t.Setenv("BUSSTOP_MAX_RADIUS", "800")
	t.Setenv("BUSSTOP_STOP_COUNT", "3")
	t.Setenv("BUSSTOP_ARRIVAL_COUNT", "4")
	t.Setenv("BUSSTOP_REGION", "South East")
	t.Setenv("BUSSTOP_INTERLEAVED", "yes")
	t.Setenv("BUSSTOP_MAX_ATTEMPTS", "7")
	t.Setenv("BUSSTOP_POSTCODES_URL", "http://localhost:8001/")
	t.Setenv("BUSSTOP_TFL_URL", "http://localhost:8002")
	t.Setenv("TFL_APP_KEY", "secret")
	t.Setenv("BUSSTOP_HTTP_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Search.MinRadius)
	assert.Equal(t, 800, cfg.Search.MaxRadius)
	assert.Equal(t, 3, cfg.Search.StopCount)
	assert.Equal(t, 4, cfg.Search.ArrivalCount)
	assert.Equal(t, "South East", cfg.Search.Region)
	assert.True(t, cfg.Search.Interleaved)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, "http://localhost:8001", cfg.API.PostcodesURL)
	assert.Equal(t, "http://localhost:8002", cfg.API.TfLURL)
	assert.Equal(t, "secret", cfg.API.TfLAppKey)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Setenv("BUSSTOP_CONFIG", "")
	path := filepath.Join(t.TempDir(), "busstop.yml")
	content := `
search:
  min_radius: 150
  max_radius: 450
  stop_count: 4
  arrival_count: 3
  region: London
retry:
  max_attempts: 2
api:
  timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 150, cfg.Search.MinRadius)
	assert.Equal(t, 450, cfg.Search.MaxRadius)
	assert.Equal(t, 4, cfg.Search.StopCount)
	assert.Equal(t, 3, cfg.Search.ArrivalCount)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.API.Timeout)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultTfLURL, cfg.API.TfLURL)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busstop.yml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  stop_count: 4\n"), 0o600))
	t.Setenv("BUSSTOP_CONFIG", path)
	t.Setenv("BUSSTOP_STOP_COUNT", "1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Search.StopCount)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		value  string
		errMsg string
	}{
		{"non-numeric radius", "BUSSTOP_MIN_RADIUS", "abc", "BUSSTOP_MIN_RADIUS"},
		{"min above max", "BUSSTOP_MIN_RADIUS", "700", "MinRadius"},
		{"zero stop count", "BUSSTOP_STOP_COUNT", "0", "StopCount"},
		{"negative attempts", "BUSSTOP_MAX_ATTEMPTS", "-1", "MaxAttempts"},
		{"bad timeout", "BUSSTOP_HTTP_TIMEOUT", "soon", "BUSSTOP_HTTP_TIMEOUT"},
		{"bad url", "BUSSTOP_TFL_URL", "not a url", "TfLURL"},
		{"bad log format", "LOG_FORMAT", "xml", "Format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BUSSTOP_CONFIG", "")
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
