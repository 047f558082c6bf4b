package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Wizard provides an interactive configuration wizard.
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading from stdin.
func NewWizard() *Wizard {
	return &Wizard{
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

// Run runs the interactive configuration wizard.
func (w *Wizard) Run() (*Config, error) {
	fmt.Fprintln(w.out, "=== Orkestra Configuration Wizard ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	validator := NewValidator()

	fmt.Fprintln(w.out, "API Keys (at least one is required; environment variables")
	fmt.Fprintln(w.out, "OPENAI_API_KEY and ANTHROPIC_API_KEY also work):")
	fmt.Fprintln(w.out)

	for {
		fmt.Fprint(w.out, "OpenAI API Key (press Enter to skip): ")
		key, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if key == "" {
			break
		}
		if err := validator.ValidateAPIKey(key, "openai"); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Secrets.OpenAIAPIKey = key
		break
	}

	for {
		fmt.Fprint(w.out, "Anthropic API Key (press Enter to skip): ")
		key, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if key == "" {
			break
		}
		if err := validator.ValidateAPIKey(key, "anthropic"); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Secrets.AnthropicAPIKey = key
		break
	}

	if cfg.Secrets.OpenAIAPIKey == "" && cfg.Secrets.AnthropicAPIKey == "" &&
		os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil, fmt.Errorf("at least one API key is required")
	}

	fmt.Fprintln(w.out)

	fmt.Fprintf(w.out, "Default model [%s]: ", cfg.DefaultModel)
	model, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if model != "" {
		cfg.DefaultModel = model
	}

	fmt.Fprintf(w.out, "Daily budget in USD [%.2f]: ", cfg.Budget.DailyUSD)
	budget, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if budget != "" {
		var usd float64
		if _, err := fmt.Sscanf(budget, "%f", &usd); err == nil && usd > 0 {
			cfg.Budget.DailyUSD = usd
		} else {
			fmt.Fprintf(w.out, "Warning: invalid amount, keeping %.2f\n", cfg.Budget.DailyUSD)
		}
	}

	fmt.Fprintln(w.out)

	fmt.Fprint(w.out, "Enable Telegram integration? (y/n) [n]: ")
	enable, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if strings.ToLower(enable) == "y" {
		cfg.Telegram.Enabled = true
		for {
			fmt.Fprint(w.out, "Telegram Bot Token: ")
			token, err := w.readLine()
			if err != nil {
				return nil, err
			}
			if err := validator.ValidateTelegramToken(token); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
				continue
			}
			cfg.Telegram.BotToken = token
			break
		}
	}

	fmt.Fprint(w.out, "Enable local dashboard? (y/n) [n]: ")
	enable, err = w.readLine()
	if err != nil {
		return nil, err
	}
	if strings.ToLower(enable) == "y" {
		cfg.Dashboard.Enabled = true

		fmt.Fprint(w.out, "Dashboard password (press Enter for no auth): ")
		password, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("failed to hash password: %w", err)
			}
			cfg.Dashboard.PasswordHash = string(hash)
		}
	}

	fmt.Fprintln(w.out)

	fmt.Fprint(w.out, "Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
