package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/orkestra/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Run interactive configuration wizard",
	Long: `Run an interactive configuration wizard to set up Orkestra.
The wizard walks through API keys, budget, Telegram and dashboard settings.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	wizard := config.NewWizard()

	cfg, err := wizard.Run()
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		for _, err := range errs {
			fmt.Printf("Config error: %v\n", err)
		}
		return fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	loader := config.NewLoader(cfgFile)
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("\nConfiguration saved to: %s\n", loader.GetConfigPath())
	fmt.Println("\nYou can now start Orkestra with: orkestra start")

	return nil
}
