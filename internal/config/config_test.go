package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultsAreRunnable verifies that a config built purely from defaults
// passes validation, so the agent can run without a config file.
func TestDefaultsAreRunnable(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1280, cfg.Browser.ViewportWidth)
	assert.Equal(t, 720, cfg.Browser.ViewportHeight)
	assert.Equal(t, 2, cfg.Bridge.Workers)
}

// TestConfigValidation verifies the Validate() method.
func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		v := viper.New()
		SetDefaults(v)
		cfg, err := Load(v)
		require.NoError(t, err)
		return *cfg
	}

	testCases := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:        "zero viewport",
			mutate:      func(c *Config) { c.Browser.ViewportWidth = 0 },
			expectError: true,
			errorMsg:    "viewport must be positive",
		},
		{
			name:        "zero nav timeout",
			mutate:      func(c *Config) { c.Browser.NavTimeout = 0 },
			expectError: true,
			errorMsg:    "nav_timeout must be positive",
		},
		{
			name:        "zero workers",
			mutate:      func(c *Config) { c.Bridge.Workers = 0 },
			expectError: true,
			errorMsg:    "workers must be positive",
		},
		{
			name:        "unknown provider",
			mutate:      func(c *Config) { c.Agent.LLM.Provider = "watson" },
			expectError: true,
			errorMsg:    "unsupported llm provider",
		},
		{
			name:        "missing provider",
			mutate:      func(c *Config) { c.Agent.LLM.Provider = "" },
			expectError: true,
			errorMsg:    "provider is required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestConfigStructureMapping verifies that the YAML tags correctly map to the struct fields.
func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  format: console
  log_file: /var/log/agent.log
browser:
  headless: false
  viewport_width: 1920
  viewport_height: 1080
  nav_timeout: 45s
  settle_delay: 3s
agent:
  llm:
    provider: ollama
    model: llava
    endpoint: http://localhost:11434/v1
    api_timeout: 90s
executor:
  action_timeout: 8s
  wait_duration: 2s
  scroll_amount_px: 750
bridge:
  workers: 4
  queue_size: 16
`
	v := viper.New()
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBufferString(yamlInput))
	require.NoError(t, err, "Viper should read the YAML without error")

	cfg, err := Load(v)
	require.NoError(t, err, "Unmarshaling into Config struct should not produce an error")

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "/var/log/agent.log", cfg.Logger.LogFile)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.ViewportWidth)
	assert.Equal(t, 45*time.Second, cfg.Browser.NavTimeout)
	assert.Equal(t, 3*time.Second, cfg.Browser.SettleDelay)
	assert.Equal(t, ProviderOllama, cfg.Agent.LLM.Provider)
	assert.Equal(t, "llava", cfg.Agent.LLM.Model)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Agent.LLM.Endpoint)
	assert.Equal(t, 90*time.Second, cfg.Agent.LLM.APITimeout)
	assert.Equal(t, 8*time.Second, cfg.Executor.ActionTimeout)
	assert.Equal(t, 750, cfg.Executor.ScrollAmountPx)
	assert.Equal(t, 4, cfg.Bridge.Workers)
	assert.Equal(t, 16, cfg.Bridge.QueueSize)
}
