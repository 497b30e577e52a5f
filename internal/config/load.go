package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/olehluchkiv/llimpl/internal/errkind"
)

// EnvPrefix prefixes every environment variable, e.g. LLIMPL_CACHE_DIR.
const EnvPrefix = "LLIMPL"

// ConfigName is the optional config file name (llimpl.toml).
const ConfigName = "llimpl"

// NewViper returns a viper instance with defaults, environment bindings and
// the optional llimpl.toml searched in dirs, in order.
func NewViper(dirs ...string) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The OpenAI variable names are accepted so existing setups keep working.
	bindings := map[string][]string{
		"api_key":  {"LLIMPL_API_KEY", "OPENAI_API_KEY"},
		"base_url": {"LLIMPL_BASE_URL", "OPENAI_BASE_URL"},
		"offline":  {"LLIMPL_OFFLINE", "OPENAI_OFFLINE"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.Wrapf(err, "bind %s", key)
		}
	}

	SetDefaults(v)

	v.SetConfigName(ConfigName)
	v.SetConfigType("toml")
	for _, d := range dirs {
		if d != "" {
			v.AddConfigPath(d)
		}
	}
	if len(dirs) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errkind.Mark(errors.Wrap(err, "read llimpl.toml"), errkind.Config)
			}
		}
	}
	return v, nil
}

// SetDefaults registers every key so AutomaticEnv can see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("model", DefaultModel)
	v.SetDefault("offline", false)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("jobs", DefaultJobs)
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("fallback", FallbackStrict)
	v.SetDefault("keep_going", false)
	v.SetDefault("cache.backend", BackendDir)
	v.SetDefault("cache.dir", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "warn")
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errkind.Mark(errors.Wrap(err, "decode configuration"), errkind.Config)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
