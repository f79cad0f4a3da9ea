package testsupport

import (
	"path/filepath"
	"testing"

	"litsieve/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.OutputDir = filepath.Join(base, "outputs")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Providers.Primary.APIKey = "test-primary-key"
	cfgVal.Providers.Fallback.APIKey = "test-fallback-key"
	cfgVal.Providers.Primary.MinIntervalMS = 0
	cfgVal.Providers.Fallback.MinIntervalMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithProviderURLs points both providers at the given endpoints, usually an
// httptest server.
func WithProviderURLs(primary, fallback string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Providers.Primary.BaseURL = primary
		b.cfg.Providers.Fallback.BaseURL = fallback
	}
}

// WithCacheDisabled clears the cache directory so lookups are skipped.
func WithCacheDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.CacheDir = ""
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
