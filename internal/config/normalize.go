package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeProvider(&c.Providers.Primary, "providers.primary", Default().Providers.Primary); err != nil {
		return err
	}
	if err := c.normalizeProvider(&c.Providers.Fallback, "providers.fallback", Default().Providers.Fallback); err != nil {
		return err
	}
	c.normalizeRetry()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeProvider(p *Provider, section string, fallback Provider) error {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	if p.Name == "" {
		p.Name = fallback.Name
	}
	p.BaseURL = strings.TrimSpace(p.BaseURL)
	if p.BaseURL == "" {
		p.BaseURL = fallback.BaseURL
	}
	p.Model = strings.TrimSpace(p.Model)
	if p.Model == "" {
		p.Model = fallback.Model
	}
	p.APIKeyEnv = strings.TrimSpace(p.APIKeyEnv)
	if p.APIKeyEnv == "" {
		p.APIKeyEnv = fallback.APIKeyEnv
	}
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = fallback.TimeoutSeconds
	}
	if p.MinIntervalMS < 0 {
		return fmt.Errorf("%s.min_interval_ms must not be negative", section)
	}
	p.APIKey = strings.TrimSpace(os.Getenv(p.APIKeyEnv))
	return nil
}

func (c *Config) normalizeRetry() {
	if c.Retry.CooldownSeconds <= 0 {
		c.Retry.CooldownSeconds = defaultRetryCooldownSeconds
	}
	if c.Retry.FailureThreshold <= 0 {
		c.Retry.FailureThreshold = defaultRetryFailureThreshold
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
