// Package config loads the application configuration from an optional YAML
// file, a .env file, and environment variables, in increasing priority.
//
// The DeepL credential is loaded here once and handed to the client at
// construction; nothing else in the program reads it from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"traduko/deepl"
)

// Defaults.
const (
	// DefaultBatchSize stays safely under DeepL's 50-texts-per-request
	// ceiling.
	DefaultBatchSize = 45
	// DefaultListen is the web server bind address.
	DefaultListen = ":8501"
	// DefaultMaxUploadMB bounds one uploaded document.
	DefaultMaxUploadMB = 64
)

// Config is the full application configuration.
type Config struct {
	// APIKey is the DeepL credential. Required for any translation run.
	APIKey string `yaml:"api_key"`
	// APIURL overrides tier-based endpoint selection when set.
	APIURL string `yaml:"api_url"`
	// BatchSize is the number of texts per translation request (1..49).
	BatchSize int `yaml:"batch_size"`
	// Listen is the web server bind address.
	Listen string `yaml:"listen"`
	// SofficePath overrides the LibreOffice binary used for .ppt conversion.
	SofficePath string `yaml:"soffice_path"`
	// MaxUploadMB is the upload size limit for the web server.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// Default returns a Config with all defaults filled in and no credential.
func Default() *Config {
	return &Config{
		BatchSize:   DefaultBatchSize,
		Listen:      DefaultListen,
		MaxUploadMB: DefaultMaxUploadMB,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// "traduko.yaml" if it exists and path is empty), then .env, then
// environment variables. Call Validate before starting a translation run.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("traduko.yaml"); err == nil {
			path = "traduko.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DEEPL_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("DEEPL_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("TRADUKO_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("TRADUKO_SOFFICE"); v != "" {
		c.SofficePath = v
	}
}

func (c *Config) applyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = DefaultMaxUploadMB
	}
}

// Validate checks the configuration for a translation run.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DEEPL_API_KEY is not set")
	}
	if c.BatchSize < 1 || c.BatchSize >= deepl.MaxTextsPerRequest {
		return fmt.Errorf("batch_size %d out of range (1..%d)", c.BatchSize, deepl.MaxTextsPerRequest-1)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb %d out of range", c.MaxUploadMB)
	}
	return nil
}

// ClientConfig returns the DeepL client construction parameters.
func (c *Config) ClientConfig() deepl.Config {
	return deepl.Config{Key: c.APIKey, Endpoint: c.APIURL}
}
