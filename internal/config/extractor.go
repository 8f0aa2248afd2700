package config

import (
	"fmt"
	"os"
	"time"
)

// ExtractorConfig selects the face detection/embedding backend.
type ExtractorConfig struct {
	Provider   string        `mapstructure:"provider"`    // "dlib" (in-process) or "remote" (HTTP)
	ModelsDir  string        `mapstructure:"models_dir"`  // dlib model files
	BaseURL    string        `mapstructure:"base_url"`    // remote face embedding server
	APIKey     string        `mapstructure:"api_key"`     // optional bearer token for remote
	APIKeyEnv  string        `mapstructure:"api_key_env"` // env var holding the token
	Timeout    time.Duration `mapstructure:"timeout"`
	Dimensions int           `mapstructure:"dimensions"` // expected embedding length, 0 skips the check
}

// ResolveEnvVars fills APIKey from APIKeyEnv when it is not set directly.
func (c *ExtractorConfig) ResolveEnvVars() {
	if c.APIKey == "" && c.APIKeyEnv != "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
}

// Validate returns the first configuration problem, or nil.
func (c *ExtractorConfig) Validate() error {
	switch c.Provider {
	case "dlib":
		if c.ModelsDir == "" {
			return fmt.Errorf("extractor: models_dir is required for dlib")
		}
	case "remote":
		if c.BaseURL == "" {
			return fmt.Errorf("extractor: base_url is required for remote")
		}
	default:
		return fmt.Errorf("extractor: unknown provider %q", c.Provider)
	}
	if c.Dimensions < 0 {
		return fmt.Errorf("extractor: dimensions must not be negative")
	}
	return nil
}
