package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/orkestra/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.Logging.File = filepath.Join(dir, "orkestra.log")
	cfg.Logging.Level = "error"
	cfg.Heartbeat.Enabled = false
	cfg.Dashboard.Enabled = false
	cfg.Webhook.Enabled = false
	cfg.Telegram.Enabled = false
	return cfg
}

func TestNewWiresStores(t *testing.T) {
	cfg := testConfig(t)

	d, err := New(cfg)
	require.NoError(t, err)

	assert.NotNil(t, d.bus)
	assert.NotNil(t, d.cache)
	assert.NotNil(t, d.ledger)
	assert.NotNil(t, d.memory)
	assert.NotNil(t, d.orchestrator)
	assert.Nil(t, d.taskRouter) // direct pipeline unless use_subagents is set

	for _, name := range []string{"messages.db", "cache.db", "costs.db", "memory.db"} {
		_, err := os.Stat(filepath.Join(cfg.DataDir, name))
		assert.NoError(t, err, name)
	}

	require.NoError(t, d.Stop())
}

func TestSubagentsEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.UseSubagents = true

	d, err := New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, d.taskRouter)
	require.NoError(t, d.Stop())
}

func TestNewClosesPartialStoresOnFailure(t *testing.T) {
	cfg := testConfig(t)
	// A directory at the ledger path makes the third store fail to open.
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.DataDir, "costs.db"), 0o755))

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cost ledger")

	// The stores opened before the failure were closed cleanly: a clean
	// sqlite close removes the WAL sidecar.
	_, statErr := os.Stat(filepath.Join(cfg.DataDir, "messages.db-wal"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStartWritesPIDFile(t *testing.T) {
	cfg := testConfig(t)

	d, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start())

	pid, err := ReadPID(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, IsRunning(cfg.DataDir))

	require.NoError(t, d.Stop())
	_, err = os.Stat(PIDFilePath(cfg.DataDir))
	assert.True(t, os.IsNotExist(err))
}

func TestStartTwiceFails(t *testing.T) {
	cfg := testConfig(t)

	d, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	assert.Error(t, d.Start())
	require.NoError(t, d.Stop())
}

func TestStatus(t *testing.T) {
	cfg := testConfig(t)

	d, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start())

	require.NoError(t, d.bus.Log("cli", "orchestrator", "user", "hello", nil))

	status := d.Status()
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, int64(1), status.Messages)

	require.NoError(t, d.Stop())
}

func TestProcessSurfacesCredentialError(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	d, err := New(cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, d.Stop()) }()
	require.NoError(t, d.Start())

	var reply string
	for token := range d.Process(context.Background(), "hello", "test", false) {
		reply += token
	}
	assert.Contains(t, reply, "credential")
}

func TestReadPIDRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(PIDFilePath(dir), []byte("not-a-pid"), 0644))

	_, err := ReadPID(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(PIDFilePath(dir), []byte(strconv.Itoa(os.Getpid())+"\n"), 0644))
	pid, err := ReadPID(dir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}
