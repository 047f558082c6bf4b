package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gpt-4o-mini", cfg.DefaultModel)
	assert.False(t, cfg.UseSubagents)
	assert.Equal(t, "gpt-4o", cfg.Routing["code_gen"])
	assert.Equal(t, "gpt-4o-mini", cfg.Routing["default"])
	assert.True(t, cfg.Budget.Enabled)
	assert.Equal(t, 1.0, cfg.Budget.DailyUSD)
	assert.Equal(t, 3600, cfg.Cache.TTLSeconds)
	assert.False(t, cfg.Ollama.Enabled)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 1800, cfg.Heartbeat.IntervalSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
	assert.Equal(t, "127.0.0.1", cfg.Dashboard.Host)
	assert.False(t, cfg.Telegram.Enabled)
}

func TestCredentialPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Secrets.OpenAIAPIKey = "sk-from-config-file-0123456789"

	// A configured key wins even when the environment is also set.
	t.Setenv("OPENAI_API_KEY", "sk-from-environment-0123456789")
	assert.Equal(t, "sk-from-config-file-0123456789", cfg.OpenAIKey())

	// The environment is only a fallback for unconfigured installs.
	cfg.Secrets.OpenAIAPIKey = ""
	assert.Equal(t, "sk-from-environment-0123456789", cfg.OpenAIKey())

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-REDACTED")
	assert.Equal(t, "sk-ant-REDACTED", cfg.AnthropicKey())

	cfg.Secrets.AnthropicAPIKey = "sk-ant-REDACTED"
	assert.Equal(t, "sk-ant-REDACTED", cfg.AnthropicKey())
}

func TestConfigStringRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	s := cfg.String()
	require.Contains(t, s, `"default_model"`)
	require.Contains(t, s, `"daily_usd"`)
}
