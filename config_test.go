package reldb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.PageSize)
	assert.Equal(t, 128, cfg.StringLength)
	assert.Equal(t, 100, cfg.BufferPoolPages)
	assert.Equal(t, time.Second, cfg.LockTimeout)
	assert.Equal(t, 1000.0, cfg.IOCostPerPage)
}

func TestLoadConfigFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"buffer_pool_pages: 8\nlock_timeout: 250ms\nio_cost_per_page: 2.5\n",
	), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.BufferPoolPages)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, 2.5, cfg.IOCostPerPage)
	// Unset keys keep their defaults.
	assert.Equal(t, 4096, cfg.PageSize)
}

func TestLoadConfigMissingFileFails(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
