package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	t.Run("valid anthropic key", func(t *testing.T) {
		assert.NoError(t, v.ValidateAPIKey("sk-ant-test123", "anthropic"))
	})

	t.Run("invalid anthropic key", func(t *testing.T) {
		assert.Error(t, v.ValidateAPIKey("invalid-key", "anthropic"))
	})

	t.Run("valid openai key", func(t *testing.T) {
		assert.NoError(t, v.ValidateAPIKey("sk-test123", "openai"))
	})

	t.Run("empty key", func(t *testing.T) {
		assert.Error(t, v.ValidateAPIKey("", "openai"))
	})
}

func TestValidateTelegramToken(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateTelegramToken("123456789:ABCdefGHIjklMNOpqrs"))
	assert.Error(t, v.ValidateTelegramToken(""))
	assert.Error(t, v.ValidateTelegramToken("not-a-token"))
}

func TestValidateBudget(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateBudget(BudgetConfig{Enabled: false}))
	assert.NoError(t, v.ValidateBudget(BudgetConfig{Enabled: true, DailyUSD: 1, MonthlyUSD: 20}))
	assert.Error(t, v.ValidateBudget(BudgetConfig{Enabled: true, DailyUSD: 0}))
	assert.Error(t, v.ValidateBudget(BudgetConfig{Enabled: true, DailyUSD: 5, MonthlyUSD: 1}))
}

func TestValidateRouting(t *testing.T) {
	v := NewValidator()

	assert.Empty(t, v.ValidateRouting(map[string]string{"code_gen": "gpt-4o"}))
	assert.NotEmpty(t, v.ValidateRouting(map[string]string{"code_gen": ""}))
	assert.NotEmpty(t, v.ValidateRouting(map[string]string{"": "gpt-4o"}))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("default config is valid", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(DefaultConfig()))
	})

	t.Run("collects multiple errors", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DefaultModel = ""
		cfg.Logging.Level = "chatty"
		cfg.Cache.TTLSeconds = -1
		cfg.Telegram.Enabled = true // no token

		errors := v.ValidateConfig(cfg)
		assert.Len(t, errors, 4)
	})

	t.Run("bad secrets are reported", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Secrets.AnthropicAPIKey = "not-a-key"

		assert.NotEmpty(t, v.ValidateConfig(cfg))
	})

	t.Run("dashboard port out of range", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Dashboard.Enabled = true
		cfg.Dashboard.Port = 99999

		assert.NotEmpty(t, v.ValidateConfig(cfg))
	})
}
