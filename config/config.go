// Package config loads the TOML configuration shared by the CLI and the
// HTTP server.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/poiesic/tutorder/ai"
	"github.com/poiesic/tutorder/geo/google"
	"github.com/poiesic/tutorder/ingestion"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Duration decodes TOML strings such as "120s".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type Database struct {
	DSN string `toml:"dsn"`
}

type LLM struct {
	Host    string   `toml:"host"`
	Model   string   `toml:"model"`
	APIKey  string   `toml:"api_key"`
	Timeout Duration `toml:"timeout"`
}

type Maps struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	CacheDir          string  `toml:"cache_dir"` // empty keeps the geocode cache in memory
}

type Artifacts struct {
	Driver      string `toml:"driver"` // "fs" or "s3"
	Dir         string `toml:"dir"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3Prefix    string `toml:"s3_prefix"`
	S3PathStyle bool   `toml:"s3_path_style"`
}

type Kafka struct {
	Brokers []string `toml:"brokers"` // empty disables publishing
	Topic   string   `toml:"topic"`
}

type Server struct {
	Addr      string `toml:"addr"`
	Workers   int    `toml:"workers"`
	UploadDir string `toml:"upload_dir"`
}

type Ingestion struct {
	MaxChars int `toml:"max_chars"`
}

// Config is the whole configuration file.
type Config struct {
	Database  Database  `toml:"database"`
	LLM       LLM       `toml:"llm"`
	Maps      Maps      `toml:"maps"`
	Artifacts Artifacts `toml:"artifacts"`
	Kafka     Kafka     `toml:"kafka"`
	Server    Server    `toml:"server"`
	Ingestion Ingestion `toml:"ingestion"`
}

// Default returns the built-in configuration.
func Default() *Config {
	llm := ai.DefaultConfig()
	return &Config{
		Database: Database{DSN: "tutorder.db"},
		LLM: LLM{
			Host:    llm.Host,
			Model:   llm.Model,
			Timeout: Duration(llm.Timeout),
		},
		Maps: Maps{
			BaseURL:           google.DefaultBaseURL,
			RequestsPerSecond: google.DefaultRequestsPerSecond,
		},
		Artifacts: Artifacts{Driver: "fs", Dir: "exports"},
		Kafka:     Kafka{Topic: "tutorder.progress"},
		Server:    Server{Addr: ":8080", Workers: 4, UploadDir: "uploads"},
		Ingestion: Ingestion{MaxChars: ingestion.DefaultMaxChars},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	switch c.Artifacts.Driver {
	case "fs":
		if c.Artifacts.Dir == "" {
			return fmt.Errorf("%w: artifacts.dir is required for the fs driver", ErrInvalidConfig)
		}
	case "s3":
		if c.Artifacts.S3Bucket == "" {
			return fmt.Errorf("%w: artifacts.s3_bucket is required for the s3 driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown artifacts.driver %q", ErrInvalidConfig, c.Artifacts.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required", ErrInvalidConfig)
	}
	if c.Server.Workers < 0 {
		return fmt.Errorf("%w: server.workers must not be negative", ErrInvalidConfig)
	}
	return nil
}

// AIConfig converts the [llm] section.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.LLM.Host),
		ai.WithModel(c.LLM.Model),
		ai.WithAPIKey(c.LLM.APIKey),
		ai.WithTimeout(time.Duration(c.LLM.Timeout)),
	)
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
