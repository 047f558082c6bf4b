package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator validates configuration values.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format.
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateTelegramToken validates a Telegram bot token.
func (v *Validator) ValidateTelegramToken(token string) error {
	if token == "" {
		return fmt.Errorf("telegram bot token cannot be empty")
	}

	// Format: <bot_id>:<token>
	pattern := regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	if !pattern.MatchString(token) {
		return fmt.Errorf("invalid Telegram bot token format")
	}

	return nil
}

// ValidateLogLevel validates a log level.
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateBudget validates spend limits.
func (v *Validator) ValidateBudget(b BudgetConfig) error {
	if !b.Enabled {
		return nil
	}
	if b.DailyUSD <= 0 {
		return fmt.Errorf("budget daily_usd must be positive when the budget is enabled, got %f", b.DailyUSD)
	}
	if b.MonthlyUSD > 0 && b.MonthlyUSD < b.DailyUSD {
		return fmt.Errorf("budget monthly_usd (%f) must be at least daily_usd (%f)", b.MonthlyUSD, b.DailyUSD)
	}
	return nil
}

// ValidateRouting validates the task routing table.
func (v *Validator) ValidateRouting(routing map[string]string) []error {
	var errors []error
	for taskType, model := range routing {
		if strings.TrimSpace(taskType) == "" {
			errors = append(errors, fmt.Errorf("routing: task type cannot be empty"))
		}
		if strings.TrimSpace(model) == "" {
			errors = append(errors, fmt.Errorf("routing: model for task type %q cannot be empty", taskType))
		}
	}
	return errors
}

// ValidatePort validates a listen port.
func (v *Validator) ValidatePort(port int, name string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s port must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// ValidateConfig performs comprehensive validation.
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if key := cfg.Secrets.OpenAIAPIKey; key != "" {
		if err := v.ValidateAPIKey(key, "openai"); err != nil {
			errors = append(errors, err)
		}
	}
	if key := cfg.Secrets.AnthropicAPIKey; key != "" {
		if err := v.ValidateAPIKey(key, "anthropic"); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.DefaultModel == "" {
		errors = append(errors, fmt.Errorf("default_model is required"))
	}
	errors = append(errors, v.ValidateRouting(cfg.Routing)...)

	if err := v.ValidateBudget(cfg.Budget); err != nil {
		errors = append(errors, err)
	}
	if cfg.Cache.TTLSeconds < 0 {
		errors = append(errors, fmt.Errorf("cache ttl_seconds must be >= 0"))
	}
	if cfg.Heartbeat.Enabled && cfg.Heartbeat.IntervalSeconds <= 0 {
		errors = append(errors, fmt.Errorf("heartbeat interval_seconds must be positive when the heartbeat is enabled"))
	}

	if cfg.Telegram.Enabled {
		if err := v.ValidateTelegramToken(cfg.Telegram.BotToken); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.Dashboard.Enabled {
		if err := v.ValidatePort(cfg.Dashboard.Port, "dashboard"); err != nil {
			errors = append(errors, err)
		}
	}
	if cfg.Webhook.Enabled {
		if err := v.ValidatePort(cfg.Webhook.Port, "webhook"); err != nil {
			errors = append(errors, err)
		}
		if cfg.Webhook.RateLimitPerMinute < 0 {
			errors = append(errors, fmt.Errorf("webhook rate_limit_per_minute must be >= 0"))
		}
	}
	if cfg.Ollama.Enabled && cfg.Ollama.BaseURL == "" {
		errors = append(errors, fmt.Errorf("ollama base_url is required when ollama is enabled"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
