package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	OutputDir string `toml:"output_dir"`
	CacheDir  string `toml:"cache_dir"`
	LogDir    string `toml:"log_dir"`
}

// Provider describes one chat-completion backend.
type Provider struct {
	Name           string `toml:"name"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	APIKeyEnv      string `toml:"api_key_env"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MinIntervalMS  int    `toml:"min_interval_ms"`

	// APIKey is resolved from the environment during normalize; it is never
	// read from the config file itself.
	APIKey string `toml:"-"`
}

// Providers pairs the preferred backend with its fallback.
type Providers struct {
	Primary  Provider `toml:"primary"`
	Fallback Provider `toml:"fallback"`
}

// Retry governs the primary-provider retry and fallback escalation policy.
type Retry struct {
	CooldownSeconds  int `toml:"cooldown_seconds"`
	FailureThreshold int `toml:"failure_threshold"`
}

// Inference holds per-stage sampling parameters.
type Inference struct {
	Temperature float64 `toml:"temperature"`
	TopP        float64 `toml:"top_p"`
	MaxTokens   int     `toml:"max_tokens"`
}

// Triage contains inclusion criteria for the screening stage.
type Triage struct {
	Criteria []string `toml:"criteria"`
}

// CrossValidation controls the reproducibility-check stage.
type CrossValidation struct {
	ForceFallback   bool     `toml:"force_fallback"`
	SynonymCriteria []string `toml:"synonym_criteria"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration for the pipeline.
type Config struct {
	Paths           Paths                `toml:"paths"`
	Providers       Providers            `toml:"providers"`
	Retry           Retry                `toml:"retry"`
	Inference       map[string]Inference `toml:"inference"`
	Triage          Triage               `toml:"triage"`
	CrossValidation CrossValidation      `toml:"cross_validation"`
	Logging         Logging              `toml:"logging"`
}

// DefaultConfigPath reports where the config file lives by default.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/litsieve/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and provider API keys resolved from the
// environment. A .env file in the working directory is honoured when present.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// Missing .env is the common case and not an error.
	_ = godotenv.Load()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("litsieve.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.OutputDir, c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StageInference returns the sampling parameters for a stage, falling back to
// the triage parameters when the stage has no dedicated section.
func (c *Config) StageInference(stage string) Inference {
	if params, ok := c.Inference[stage]; ok {
		return params
	}
	if params, ok := c.Inference["triage"]; ok {
		return params
	}
	return Inference{Temperature: defaultTemperature, TopP: defaultTopP, MaxTokens: defaultMaxTokens}
}

// AuditLogPath reports where the append-only attempt log lives.
func (c *Config) AuditLogPath() string {
	return filepath.Join(c.Paths.OutputDir, "audit_log.jsonl")
}

// DatabasePath reports where the corpus database lives.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "corpus.db")
}

// ResultsPath reports the incremental JSONL results file for a stage run.
func (c *Config) ResultsPath(name string) string {
	return filepath.Join(c.Paths.OutputDir, name+"_results.jsonl")
}

// RunLockPath reports the lock file that serializes pipeline stages.
func (c *Config) RunLockPath() string {
	return filepath.Join(c.Paths.DataDir, "litsieve.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
