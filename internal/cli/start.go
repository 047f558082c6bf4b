package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/orkestra/internal/config"
	"github.com/harun/orkestra/internal/daemon"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Orkestra daemon",
	Long: `Start the Orkestra daemon in the foreground. The daemon serves
the enabled front-ends (dashboard, webhooks, Telegram) until it receives
SIGINT or SIGTERM.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if daemon.IsRunning(cfg.DataDir) {
		pid, _ := daemon.ReadPID(cfg.DataDir)
		return fmt.Errorf("daemon is already running (PID %d)", pid)
	}

	d, err := daemon.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize daemon: %w", err)
	}

	return d.Run()
}

// loadConfig loads the configuration, applying the --log-level override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		for _, err := range errs {
			fmt.Printf("Config error: %v\n", err)
		}
		return nil, fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	return cfg, nil
}
