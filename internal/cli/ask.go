package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/orkestra/internal/config"
	"github.com/harun/orkestra/internal/daemon"
)

var askNoStream bool

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send a one-shot message through the pipeline",
	Long: `Send a message through the assistant pipeline and print the reply.
This spins up the pipeline in-process: the daemon does not need to be
running, but its stores (cache, memory, cost ledger) are shared.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "print the reply only once it is complete")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	message := strings.Join(args, " ")

	d, err := newAskDaemon(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer d.Stop()

	for token := range d.Process(context.Background(), message, "cli", !askNoStream) {
		fmt.Fprint(os.Stdout, token)
	}
	fmt.Println()

	return nil
}

var newAskDaemon = func(cfg *config.Config) (*daemon.Daemon, error) {
	// A one-shot run never serves front-ends, and console output
	// belongs to the reply alone.
	cfg.Dashboard.Enabled = false
	cfg.Webhook.Enabled = false
	cfg.Telegram.Enabled = false
	cfg.Heartbeat.Enabled = false
	cfg.Logging.Level = "error"
	return daemon.New(cfg)
}
