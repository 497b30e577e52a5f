// Package config builds the explicit configuration object threaded through
// the generation pipeline. Nothing below the CLI reads the environment.
package config

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/olehluchkiv/llimpl/internal/errkind"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
	DefaultJobs    = 4

	BackendDir    = "dir"
	BackendSQLite = "sqlite"

	// FallbackStrict rejects a response that is not the structured bodies
	// object. FallbackSingle accepts the raw text as the body of a
	// single-method declaration.
	FallbackStrict = "strict"
	FallbackSingle = "single"
)

// Config is resolved once per invocation.
type Config struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	Offline   bool          `mapstructure:"offline"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Jobs      int           `mapstructure:"jobs"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Fallback  string        `mapstructure:"fallback"`
	KeepGoing bool          `mapstructure:"keep_going"`
	Cache     Cache         `mapstructure:"cache"`
	Log       Log           `mapstructure:"log"`
}

// Cache selects and locates the cache store.
type Cache struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

// Log configures the process logger.
type Log struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// Validate rejects contradictory or out-of-range settings.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case BackendDir, BackendSQLite:
	default:
		return errkind.Configf("cache.backend (LLIMPL_CACHE_BACKEND) must be %q or %q, got %q", BackendDir, BackendSQLite, c.Cache.Backend)
	}
	switch c.Fallback {
	case FallbackStrict, FallbackSingle:
	default:
		return errkind.Configf("fallback (LLIMPL_FALLBACK) must be %q or %q, got %q", FallbackStrict, FallbackSingle, c.Fallback)
	}
	if c.Jobs < 1 {
		return errkind.Configf("jobs (LLIMPL_JOBS) must be at least 1, got %d", c.Jobs)
	}
	if c.Timeout <= 0 {
		return errkind.Configf("timeout (LLIMPL_TIMEOUT) must be positive, got %s", c.Timeout)
	}
	if c.RateLimit < 0 {
		return errkind.Configf("rate_limit (LLIMPL_RATE_LIMIT) must not be negative, got %v", c.RateLimit)
	}
	if c.BaseURL == "" {
		return errkind.Configf("base_url (LLIMPL_BASE_URL) must not be empty")
	}
	return nil
}

// CacheDir returns the cache location. An explicit setting wins; otherwise
// the cache is build-scoped under the module root, falling back to the
// user cache directory when no module root is known.
func (c Config) CacheDir(moduleRoot string) string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	if moduleRoot != "" {
		return filepath.Join(moduleRoot, ".llimpl", "cache")
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "llimpl", "cache")
	}
	return filepath.Join(".llimpl", "cache")
}

// MarshalLogObject logs the configuration with the credential masked.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("base_url", c.BaseURL)
	enc.AddString("model", c.Model)
	enc.AddBool("offline", c.Offline)
	enc.AddDuration("timeout", c.Timeout)
	enc.AddInt("jobs", c.Jobs)
	enc.AddFloat64("rate_limit", c.RateLimit)
	enc.AddString("fallback", c.Fallback)
	enc.AddString("cache_backend", c.Cache.Backend)
	enc.AddString("cache_dir", c.Cache.Dir)
	if c.APIKey == "" {
		enc.AddString("api_key", "")
	} else {
		enc.AddString("api_key", "[REDACTED]")
	}
	return nil
}
