package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the optional dyad.yml read by the serve daemon.
// Every field except Version has an environment counterpart that wins when
// both are set.
type FileConfig struct {
	Version string `yaml:"version"`

	// Listen is the fetch server's listen address (DYAD_FETCH_ADDR).
	Listen string `yaml:"listen,omitempty"`

	// RedisURL is the KVS connection string (DYAD_REDIS_URL).
	RedisURL string `yaml:"redis_url,omitempty"`

	// Namespace is the KVS namespace (DYAD_KVS_NAMESPACE).
	Namespace string `yaml:"namespace,omitempty"`

	// ProducerPath is the managed directory served to consumers (DYAD_PATH_PROD).
	ProducerPath string `yaml:"producer_path,omitempty"`
}

// LoadFile reads and validates a dyad.yml.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := fc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &fc, nil
}

// Validate performs strict validation on the file configuration.
func (fc *FileConfig) Validate() error {
	if fc.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", fc.Version)
	}
	return nil
}

// Apply overlays the file configuration onto cfg for every field the
// environment left unset.
func (fc *FileConfig) Apply(cfg *Config) {
	if os.Getenv(EnvFetchAddr) == "" && fc.Listen != "" {
		cfg.FetchAddr = fc.Listen
	}
	if os.Getenv(EnvRedisURL) == "" && fc.RedisURL != "" {
		cfg.RedisURL = fc.RedisURL
	}
	if os.Getenv(EnvKVSNamespace) == "" && fc.Namespace != "" {
		cfg.KVSNamespace = fc.Namespace
	}
	if os.Getenv(EnvPathProd) == "" && fc.ProducerPath != "" {
		cfg.PathProd = fc.ProducerPath
	}
}
