package config

import (
	"encoding/json"
	"os"
)

// Config represents the main Orkestra configuration.
type Config struct {
	// Data directory, defaults to ~/.orkestra
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Directory generated files are written to
	OutputDir string `json:"output_dir" mapstructure:"output_dir"`

	// Model used when no routing rule applies
	DefaultModel string `json:"default_model" mapstructure:"default_model"`

	// Delegate classified tasks to per-type worker agents
	UseSubagents bool `json:"use_subagents" mapstructure:"use_subagents"`

	// Task type to model routing table
	Routing map[string]string `json:"routing" mapstructure:"routing"`

	Secrets   SecretsConfig   `json:"secrets" mapstructure:"secrets"`
	Budget    BudgetConfig    `json:"budget" mapstructure:"budget"`
	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	Ollama    OllamaConfig    `json:"ollama" mapstructure:"ollama"`
	Heartbeat HeartbeatConfig `json:"heartbeat" mapstructure:"heartbeat"`
	Dashboard DashboardConfig `json:"dashboard" mapstructure:"dashboard"`
	Telegram  TelegramConfig  `json:"telegram" mapstructure:"telegram"`
	Webhook   WebhookConfig   `json:"webhook" mapstructure:"webhook"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// SecretsConfig holds provider API keys. Environment variables
// OPENAI_API_KEY and ANTHROPIC_API_KEY take precedence.
type SecretsConfig struct {
	OpenAIAPIKey    string `json:"openai_api_key" mapstructure:"openai_api_key"`
	AnthropicAPIKey string `json:"anthropic_api_key" mapstructure:"anthropic_api_key"`
}

// BudgetConfig holds spend limits.
type BudgetConfig struct {
	Enabled    bool    `json:"enabled" mapstructure:"enabled"`
	DailyUSD   float64 `json:"daily_usd" mapstructure:"daily_usd"`
	MonthlyUSD float64 `json:"monthly_usd" mapstructure:"monthly_usd"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	TTLSeconds int `json:"ttl_seconds" mapstructure:"ttl_seconds"` // 0 disables expiry
}

// OllamaConfig holds local model fallback settings.
type OllamaConfig struct {
	Enabled bool     `json:"enabled" mapstructure:"enabled"`
	BaseURL string   `json:"base_url" mapstructure:"base_url"`
	Models  []string `json:"models" mapstructure:"models"`
}

// HeartbeatConfig holds background scheduler settings.
type HeartbeatConfig struct {
	Enabled         bool `json:"enabled" mapstructure:"enabled"`
	IntervalSeconds int  `json:"interval_seconds" mapstructure:"interval_seconds"`
}

// DashboardConfig holds local dashboard settings.
type DashboardConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	PasswordHash string `json:"password_hash" mapstructure:"password_hash"` // bcrypt; empty disables auth
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Enabled   bool    `json:"enabled" mapstructure:"enabled"`
	BotToken  string  `json:"bot_token" mapstructure:"bot_token"`
	Allowlist []int64 `json:"allowlist" mapstructure:"allowlist"`
}

// WebhookConfig holds webhook server settings.
type WebhookConfig struct {
	Enabled            bool   `json:"enabled" mapstructure:"enabled"`
	Host               string `json:"host" mapstructure:"host"`
	Port               int    `json:"port" mapstructure:"port"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	RegistryPath       string `json:"registry_path" mapstructure:"registry_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		DefaultModel: "gpt-4o-mini",
		UseSubagents: false,
		Routing: map[string]string{
			"classify":  "gpt-4o-mini",
			"summarize": "gpt-4o-mini",
			"code_gen":  "gpt-4o",
			"reasoning": "claude-3-5-sonnet-20241022",
			"default":   "gpt-4o-mini",
		},
		Budget: BudgetConfig{
			Enabled:    true,
			DailyUSD:   1.0,
			MonthlyUSD: 20.0,
		},
		Cache: CacheConfig{
			TTLSeconds: 3600,
		},
		Ollama: OllamaConfig{
			Enabled: false,
			BaseURL: "http://localhost:11434",
			Models:  []string{"llama3.2"},
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         true,
			IntervalSeconds: 1800,
		},
		Dashboard: DashboardConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    3000,
		},
		Webhook: WebhookConfig{
			Enabled:            false,
			Host:               "127.0.0.1",
			Port:               3001,
			RateLimitPerMinute: 100,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   50,
			MaxAge:    7,
			Redaction: true,
		},
	}
}

// OpenAIKey returns the OpenAI API key. The config file wins over the
// environment; the environment is the fallback for unconfigured installs.
func (c *Config) OpenAIKey() string {
	if c.Secrets.OpenAIAPIKey != "" {
		return c.Secrets.OpenAIAPIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// AnthropicKey returns the Anthropic API key, config file first.
func (c *Config) AnthropicKey() string {
	if c.Secrets.AnthropicAPIKey != "" {
		return c.Secrets.AnthropicAPIKey
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

// String returns a JSON representation of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
