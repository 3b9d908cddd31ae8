package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("workspace_dir: "+dir+"\n"), 0o644))

	c, err := Load(cfg)
	require.NoError(t, err)
	assert.Equal(t, dir, c.WorkspaceDir)
	assert.Equal(t, "local_data.csv", c.DataFile)
	assert.Equal(t, 10, c.MaxHistory)
	assert.Equal(t, "text", c.LogFormat)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("max_history: 4\nlog_level: warn\n"), 0o644))
	t.Setenv("TABSTEP_LOG_LEVEL", "debug")

	c, err := Load(cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, c.MaxHistory)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	c := &Global{WorkspaceDir: dir, DataFile: "data.csv", MaxHistory: 5, LogLevel: "info", LogFormat: "json"}
	require.NoError(t, c.Set("serve_addr", ":9000"))
	require.NoError(t, Save(c, cfg))

	got, err := Load(cfg)
	require.NoError(t, err)
	assert.Equal(t, "data.csv", got.DataFile)
	assert.Equal(t, 5, got.MaxHistory)
	assert.Equal(t, ":9000", got.ServeAddr)
	assert.Equal(t, "json", got.LogFormat)
}

func TestSetRejectsBadValues(t *testing.T) {
	c := &Global{}
	assert.Error(t, c.Set("max_history", "zero"))
	assert.Error(t, c.Set("max_history", "-1"))
	assert.Error(t, c.Set("log_format", "xml"))
	assert.Error(t, c.Set("nope", "x"))
	require.NoError(t, c.Set("max_history", "7"))
	v, ok := c.Get("max_history")
	assert.True(t, ok)
	assert.Equal(t, "7", v)
}
