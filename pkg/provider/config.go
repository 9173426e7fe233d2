package provider

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// S3Config holds object-store connection settings. Endpoint and
// credentials are only needed for S3-compatible services (MinIO);
// against AWS the default credential chain applies.
type S3Config struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

// ObservabilityConfig controls tracing and the metrics endpoint.
type ObservabilityConfig struct {
	ServiceName   string `yaml:"service_name"`
	EnableTracing bool   `yaml:"enable_tracing"`
	MetricsPort   int    `yaml:"metrics_port"`
}

// Config enumerates every external resource the workflow touches. It is
// loaded once at startup and validated before any component runs;
// nothing reads the environment mid-operation.
type Config struct {
	Region         string `yaml:"region"`
	AccountID      string `yaml:"account_id"`
	ManifestBucket string `yaml:"manifest_bucket"`
	BatchRoleARN   string `yaml:"batch_role_arn"`
	ChecksumTable  string `yaml:"checksum_table"`
	Environment    string `yaml:"environment"`

	// Workers bounds per-invocation concurrency in the tagger pool.
	Workers int `yaml:"workers"`

	// ClaimTTL is how long unreconciled claims survive.
	ClaimTTL time.Duration `yaml:"claim_ttl"`

	S3            S3Config            `yaml:"s3"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// LoadConfig loads configuration from a YAML file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.ApplyDefaults()

	return &config, nil
}

// ApplyDefaults fills optional fields.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.ClaimTTL == 0 {
		c.ClaimTTL = 10 * 24 * time.Hour
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "checksum-batch"
	}
}

// Validate fails fast at startup, naming the first missing field.
func (c *Config) Validate() error {
	if c.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	if c.ManifestBucket == "" {
		return fmt.Errorf("manifest_bucket is required")
	}
	if c.BatchRoleARN == "" {
		return fmt.Errorf("batch_role_arn is required")
	}
	if c.ChecksumTable == "" {
		return fmt.Errorf("checksum_table is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	return nil
}
