package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synapse.toml")
	require.NoError(t, os.WriteFile(path, []byte("[privacy]\ntotal_budget = 1.0\n"), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Stop()

	reloaded := make(chan *Config, 1)
	w.OnReload(func(cfg *Config) error {
		select {
		case reloaded <- cfg:
		default:
		}
		return nil
	})
	w.Start()

	require.NoError(t, os.WriteFile(path, []byte("[privacy]\ntotal_budget = 7.5\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 7.5, cfg.Privacy.TotalBudget)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestWatcherRejectsMissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
