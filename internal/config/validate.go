package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProvider(&c.Providers.Primary, "providers.primary"); err != nil {
		return err
	}
	if err := c.validateProvider(&c.Providers.Fallback, "providers.fallback"); err != nil {
		return err
	}
	if c.Providers.Primary.Name == c.Providers.Fallback.Name {
		return errors.New("providers.primary and providers.fallback must have distinct names")
	}
	if err := c.validateInference(); err != nil {
		return err
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateProvider(p *Provider, section string) error {
	if strings.TrimSpace(p.BaseURL) == "" {
		return fmt.Errorf("%s.base_url must be set", section)
	}
	if !strings.HasPrefix(p.BaseURL, "http://") && !strings.HasPrefix(p.BaseURL, "https://") {
		return fmt.Errorf("%s.base_url must be an http(s) URL", section)
	}
	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("%s.model must be set", section)
	}
	if strings.TrimSpace(p.APIKeyEnv) == "" {
		return fmt.Errorf("%s.api_key_env must be set", section)
	}
	return nil
}

func (c *Config) validateInference() error {
	for stage, params := range c.Inference {
		if params.Temperature < 0 || params.Temperature > 2 {
			return fmt.Errorf("inference.%s.temperature must be between 0 and 2", stage)
		}
		if params.TopP < 0 || params.TopP > 1 {
			return fmt.Errorf("inference.%s.top_p must be between 0 and 1", stage)
		}
		if params.MaxTokens <= 0 {
			return fmt.Errorf("inference.%s.max_tokens must be positive", stage)
		}
	}
	return nil
}
