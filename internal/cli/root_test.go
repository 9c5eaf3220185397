package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
claimify:
  context_window_p: 2
concepts:
  similarity_threshold: 0.85
  batch_mode: independent
sync:
  initial_backoff: 50ms
`), 0644))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Claimify.ContextWindowP)
	assert.Equal(t, 1, cfg.Claimify.ContextWindowF)
	assert.Equal(t, 0.85, cfg.Concepts.SimilarityThreshold)
	assert.Equal(t, "independent", cfg.Concepts.BatchMode)
	assert.Equal(t, 50*time.Millisecond, cfg.Sync.InitialBackoff)
	assert.Equal(t, 0.5, cfg.Claimify.SelectionConfidenceThreshold)
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("concepts.similarity_threshold", 1.5)
	_, err := loadConfig()
	assert.ErrorContains(t, err, "similarity_threshold")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".aclarai", "x.db"), expandHome("~/.aclarai/x.db"))
	assert.Equal(t, "/tmp/x.db", expandHome("/tmp/x.db"))
	assert.Equal(t, ":memory:", expandHome(":memory:"))
}

func TestFileBlockID(t *testing.T) {
	a := fileBlockID("notes/standup.md")
	assert.Equal(t, a, fileBlockID("notes/standup.md"))
	assert.NotEqual(t, a, fileBlockID("notes/retro.md"))
	assert.Len(t, a, len("blk_")+12)
}
