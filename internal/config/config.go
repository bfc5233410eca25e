// The application's root configuration for the visual test agent.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
}

// ColorConfig defines the color settings for different log levels.
// These are used for console output to make logs more readable.
type ColorConfig struct {
	Debug string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" json:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error string `mapstructure:"error" json:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// BrowserConfig holds settings for the headless browser session.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors"`
	ViewportWidth   int           `mapstructure:"viewport_width"`
	ViewportHeight  int           `mapstructure:"viewport_height"`
	NavTimeout      time.Duration `mapstructure:"nav_timeout"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderGemini LLMProvider = "gemini"
	// ProviderOllama is for connecting to a local, self-hosted LLM instance.
	ProviderOllama LLMProvider = "ollama"
)

// LLMModelConfig holds settings for the vision-capable language model.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Endpoint    string        `mapstructure:"endpoint"` // Optional endpoint override
	APITimeout  time.Duration `mapstructure:"api_timeout"`
	Temperature float32       `mapstructure:"temperature"`
	TopP        float32       `mapstructure:"top_p"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// AgentConfig holds settings for the autonomous test agent.
type AgentConfig struct {
	LLM LLMModelConfig `mapstructure:"llm"`
}

// ExecutorConfig holds settings for the step state machine.
type ExecutorConfig struct {
	ActionTimeout  time.Duration `mapstructure:"action_timeout"`
	WaitDuration   time.Duration `mapstructure:"wait_duration"`
	ScrollAmountPx int           `mapstructure:"scroll_amount_px"`
}

// BridgeConfig holds settings for the run worker pool.
type BridgeConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// SetDefaults registers sane defaults so the agent can run with a minimal
// or missing config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "altx-test-agent")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.nav_timeout", 30*time.Second)
	v.SetDefault("browser.settle_delay", 2*time.Second)

	v.SetDefault("agent.llm.provider", string(ProviderOpenAI))
	v.SetDefault("agent.llm.model", "gpt-4o-mini")
	v.SetDefault("agent.llm.api_timeout", 60*time.Second)
	v.SetDefault("agent.llm.temperature", 0.2)
	v.SetDefault("agent.llm.top_p", 0.9)
	v.SetDefault("agent.llm.max_tokens", 2048)
	v.SetDefault("agent.llm.max_retries", 2)

	v.SetDefault("executor.action_timeout", 10*time.Second)
	v.SetDefault("executor.wait_duration", time.Second)
	v.SetDefault("executor.scroll_amount_px", 500)

	v.SetDefault("bridge.workers", 2)
	v.SetDefault("bridge.queue_size", 8)
}

// Validate checks the configuration for values that would make a run
// impossible or nonsensical.
func (c *Config) Validate() error {
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d",
			c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	if c.Browser.NavTimeout <= 0 {
		return fmt.Errorf("browser nav_timeout must be positive")
	}
	if c.Executor.ActionTimeout <= 0 {
		return fmt.Errorf("executor action_timeout must be positive")
	}
	if c.Bridge.Workers <= 0 {
		return fmt.Errorf("bridge workers must be positive, got %d", c.Bridge.Workers)
	}
	switch c.Agent.LLM.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderOllama:
	case "":
		return fmt.Errorf("agent.llm.provider is required")
	default:
		return fmt.Errorf("unsupported llm provider %q", c.Agent.LLM.Provider)
	}
	return nil
}

// Load unmarshals the viper state into a Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}
