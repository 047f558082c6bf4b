package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoad(t *testing.T) {
	t.Run("defaults when file does not exist", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", cfg.DefaultModel)
		assert.True(t, cfg.Budget.Enabled)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "orkestra.json")
		testConfig := `{
			"default_model": "gpt-4o",
			"use_subagents": false,
			"budget": {"enabled": true, "daily_usd": 2.5},
			"routing": {"code_gen": "claude-3-5-sonnet-20241022"},
			"dashboard": {"enabled": true, "port": 4000}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", cfg.DefaultModel)
		assert.False(t, cfg.UseSubagents)
		assert.Equal(t, 2.5, cfg.Budget.DailyUSD)
		assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Routing["code_gen"])
		assert.True(t, cfg.Dashboard.Enabled)
		assert.Equal(t, 4000, cfg.Dashboard.Port)
	})

	t.Run("derived paths fall back to data dir", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "orkestra.json")
		testConfig := `{"data_dir": "` + dir + `"}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "output"), cfg.OutputDir)
		assert.Equal(t, filepath.Join(dir, "orkestra.log"), cfg.Logging.File)
		assert.Equal(t, filepath.Join(dir, "webhooks.json"), cfg.Webhook.RegistryPath)
	})

	t.Run("malformed file returns error", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "orkestra.json")
		require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "orkestra.json")
	loader := NewLoader(configPath)

	cfg := DefaultConfig()
	cfg.DefaultModel = "gpt-4o"
	cfg.Budget.DailyUSD = 5.0
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", loaded.DefaultModel)
	assert.Equal(t, 5.0, loaded.Budget.DailyUSD)
}

func TestGetConfigPath(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".orkestra", "orkestra.json"), NewLoader("").GetConfigPath())
}
