package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "https://api.deepseek.com/v1", cfg.Host)
	assert.Equal(t, "deepseek-chat", cfg.Model)
	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithHost("http://localhost:11434/v1"),
			WithModel("qwen2.5:3b"),
			WithAPIKey("secret"),
			WithTimeout(5*time.Second),
		)

		assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
		assert.Equal(t, "qwen2.5:3b", cfg.Model)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
	})
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{name: "adds suffix", host: "https://api.deepseek.com", want: "https://api.deepseek.com/v1"},
		{name: "trailing slash", host: "https://api.deepseek.com/", want: "https://api.deepseek.com/v1"},
		{name: "already normalized", host: "http://localhost:8080/v1", want: "http://localhost:8080/v1"},
		{name: "empty stays empty", host: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Host: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.Host)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return NewConfig(WithAPIKey("key"))
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "missing host", mutate: func(c *Config) { c.Host = "" }, wantErr: ErrMissingHost},
		{name: "missing model", mutate: func(c *Config) { c.Model = "" }, wantErr: ErrMissingModel},
		{name: "missing key", mutate: func(c *Config) { c.APIKey = "  " }, wantErr: ErrMissingAPIKey},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}
