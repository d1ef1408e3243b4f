// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"errors"
	"strings"
	"time"
)

// Configuration errors. All are terminal: a provider is never built from an
// invalid Config.
var (
	ErrMissingHost    = errors.New("ai config: Host is required")
	ErrMissingModel   = errors.New("ai config: Model is required")
	ErrMissingAPIKey  = errors.New("ai config: APIKey is required")
	ErrInvalidTimeout = errors.New("ai config: Timeout must be positive")
)

// Config holds configuration for the text-understanding service.
type Config struct {
	// Host is the base URL of the OpenAI-compatible chat API.
	// Example: "https://api.deepseek.com/v1"
	Host string

	// Model is the chat model identifier.
	// Example: "deepseek-chat"
	Model string

	// APIKey is the bearer token sent with every request.
	APIKey string

	// Timeout bounds a single chat completion request.
	// Default: 120s
	Timeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the chat model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// DefaultConfig returns a Config pointing at the DeepSeek chat API.
// The API key is left empty and must be supplied by the caller.
func DefaultConfig() *Config {
	return &Config{
		Host:    "https://api.deepseek.com/v1",
		Model:   "deepseek-chat",
		Timeout: 120 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithAPIKey(os.Getenv("DEEPSEEK_API_KEY")),
//	    WithModel("deepseek-chat"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the host if missing, which OpenAI-compatible
// APIs expect.
func (c *Config) Normalize() {
	c.Host = strings.TrimSpace(c.Host)
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return ErrMissingHost
	}
	if c.Model == "" {
		return ErrMissingModel
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
