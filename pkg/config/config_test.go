package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	return p
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	p := writeFile(t, "config.json", `{"api_key": "sk_test", "start_date": "2024-01-01T00:00:00Z"}`)

	cfg, err := Load(p)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sk_test", cfg.APIKey)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, DefaultAPIVersion, cfg.APIVersion)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, OnErrorFail, cfg.Conformance.OnError)
	assert.Equal(t, "https://api.hookdeck.com/2024-09-01", cfg.BaseURL())
}

func TestLoadYAMLWithEnvSubstitution(t *testing.T) {
	t.Setenv("HOOKDECK_KEY_FOR_TEST", "sk_from_env")
	p := writeFile(t, "config.yaml", `
api_key: ${HOOKDECK_KEY_FOR_TEST}
request_timeout: 5s
log:
  level: debug
output:
  compression: zstd
`)

	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "sk_from_env", cfg.APIKey)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "zstd", cfg.Output.Compression)
}

func TestLoadLaterFilesOverride(t *testing.T) {
	base := writeFile(t, "base.json", `{"api_key": "sk_base", "api_url": "https://example.test"}`)
	override := writeFile(t, "override.json", `{"api_key": "sk_override"}`)

	cfg, err := Load(base, override)
	require.NoError(t, err)

	assert.Equal(t, "sk_override", cfg.APIKey)
	assert.Equal(t, "https://example.test", cfg.APIURL)
}

func TestLoadEnvironmentOverlay(t *testing.T) {
	t.Setenv("TAP_HOOKDECK_API_KEY", "sk_env")
	t.Setenv("TAP_HOOKDECK_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk_env", cfg.APIKey)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing api key", func(c *Config) { c.APIKey = "" }, "api_key is required"},
		{"bad start date", func(c *Config) { c.StartDate = "yesterday" }, "start_date"},
		{"date only start date", func(c *Config) { c.StartDate = "2024-03-01" }, ""},
		{"relative api url", func(c *Config) { c.APIURL = "api.hookdeck.com" }, "api_url"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"sample rate", func(c *Config) { c.Tracing.SampleRate = 2 }, "sample_rate"},
		{"unknown policy", func(c *Config) { c.Conformance.OnError = "drop" }, "conformance.on_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.APIKey = "sk_test"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestStartTime(t *testing.T) {
	cfg := NewConfig()

	st, err := cfg.StartTime()
	require.NoError(t, err)
	assert.Nil(t, st)

	cfg.StartDate = "2024-05-06T07:08:09Z"
	st, err = cfg.StartTime()
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.Equal(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)))
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.APIKey = "sk_saved"
	cfg.State.URI = "file:///tmp/state.json"

	p := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(p, cfg))

	loaded, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, cfg.APIKey, loaded.APIKey)
	assert.Equal(t, cfg.State.URI, loaded.State.URI)
	assert.Equal(t, cfg.RequestTimeout, loaded.RequestTimeout)
}

func TestRedacted(t *testing.T) {
	cfg := NewConfig()
	cfg.APIKey = "sk_secret"

	assert.Equal(t, "********", cfg.Redacted().APIKey)
	assert.Equal(t, "sk_secret", cfg.APIKey)
}
