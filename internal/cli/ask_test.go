package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/orkestra/internal/config"
	"github.com/harun/orkestra/internal/daemon"
)

func TestAskCommand(t *testing.T) {
	t.Run("command exists", func(t *testing.T) {
		found := false
		for _, c := range GetRootCmd().Commands() {
			if c.Name() == "ask" {
				found = true
				break
			}
		}
		assert.True(t, found, "ask command should exist")
	})

	t.Run("requires a message", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"ask"})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})

		err := cmd.Execute()
		require.Error(t, err)
	})

	t.Run("help text", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"ask", "--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		helpText := output.String()
		assert.Contains(t, helpText, "one-shot")
		assert.Contains(t, helpText, "no-stream")
	})
}

func TestNewAskDaemonDisablesFrontEnds(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Dashboard.Enabled = true
	cfg.Webhook.Enabled = true
	cfg.Heartbeat.Enabled = true

	d, err := newAskDaemon(cfg)
	require.NoError(t, err)
	defer d.Stop()

	assert.IsType(t, &daemon.Daemon{}, d)
	assert.False(t, cfg.Dashboard.Enabled)
	assert.False(t, cfg.Webhook.Enabled)
	assert.False(t, cfg.Telegram.Enabled)
	assert.False(t, cfg.Heartbeat.Enabled)
}
