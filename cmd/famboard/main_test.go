package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "timezone: UTC\ndata_dir: " + filepath.Join(dir, "data") + "\nschedule:\n  days: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestRender_NoCalendars(t *testing.T) {
	path := writeConfig(t)
	cmd := newRootCmd()
	cmd.SetArgs([]string{"render", "--config", path, "--start", "2026-02-15"})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(filepath.Dir(path), "data", "famboard.db"))
	assert.NoError(t, err)
}

func TestRender_BadStart(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"render", "--config", writeConfig(t), "--start", "tomorrow"})
	assert.Error(t, cmd.Execute())
}

func TestRoot_BadLogLevel(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--log-level", "loud", "render", "--config", writeConfig(t)})
	assert.Error(t, cmd.Execute())
}
