package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
)

// EnvPrefix namespaces environment overrides, e.g. TAP_HOOKDECK_API_KEY or
// TAP_HOOKDECK_LOG_LEVEL.
const EnvPrefix = "TAP_HOOKDECK"

// Load reads one or more JSON or YAML files, later files overriding earlier
// ones, then overlays TAP_HOOKDECK_* environment variables on top of the
// defaults. ${VAR} placeholders inside the files are substituted from the
// environment before parsing. Load does not validate.
func Load(paths ...string) (*Config, error) {
	v := newViper()

	for _, p := range paths {
		data, err := os.ReadFile(p) //nolint:gosec // G304: path comes from the command line
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", p)
		}

		v.SetConfigType(configType(p))
		if err := v.MergeConfig(strings.NewReader(substituteEnvVars(string(data)))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file").
				WithDetail("path", p)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}
	return cfg, nil
}

// Save writes a configuration as YAML
func Save(filePath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func newViper() *viper.Viper {
	v := viper.New()

	d := NewConfig()
	v.SetDefault("api_url", d.APIURL)
	v.SetDefault("api_version", d.APIVersion)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen_addr", d.Metrics.ListenAddr)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("output.compression", d.Output.Compression)
	v.SetDefault("state.uri", d.State.URI)
	v.SetDefault("conformance.on_error", d.Conformance.OnError)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// keys without defaults are invisible to AutomaticEnv during Unmarshal
	_ = v.BindEnv("api_key")
	_ = v.BindEnv("start_date")

	return v
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
