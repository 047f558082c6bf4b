package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/orkestra/internal/daemon"
	"github.com/harun/orkestra/pkg/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and spend",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !daemon.IsRunning(cfg.DataDir) {
		fmt.Println("Status: stopped")
		return nil
	}

	pid, err := daemon.ReadPID(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	fmt.Println("Status: running")
	fmt.Printf("PID: %d\n", pid)
	if info, err := os.Stat(daemon.PIDFilePath(cfg.DataDir)); err == nil {
		fmt.Printf("Uptime: %s\n", formatDuration(time.Since(info.ModTime())))
	}

	// The ledger uses WAL mode, so reading alongside the daemon is safe.
	l, err := ledger.New(filepath.Join(cfg.DataDir, "costs.db"), zerolog.Nop())
	if err == nil {
		defer l.Close()
		if daily, err := l.DailyTotal(); err == nil {
			fmt.Printf("Spend today: $%.4f\n", daily)
		}
		if monthly, err := l.MonthlyTotal(); err == nil {
			fmt.Printf("Spend this month: $%.4f\n", monthly)
		}
	}

	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
