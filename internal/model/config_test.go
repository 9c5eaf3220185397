package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Claimify.ContextWindowP)
	assert.Equal(t, 1, cfg.Claimify.ContextWindowF)
	assert.Equal(t, 0.5, cfg.Claimify.SelectionConfidenceThreshold)
	assert.Equal(t, 0.5, cfg.Claimify.DisambiguationConfidenceThreshold)
	assert.Equal(t, 0.5, cfg.Claimify.DecompositionConfidenceThreshold)
	assert.Equal(t, 0.9, cfg.Concepts.SimilarityThreshold)
	assert.Equal(t, 3, cfg.Claimify.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Claimify.StageTimeout())
	assert.Equal(t, 10, cfg.Concepts.TopK)
}

func TestConfig_ValidateRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Concepts.SimilarityThreshold = 1.2
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Claimify.ContextWindowP = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Concepts.BatchMode = "parallel"
	assert.Error(t, cfg.Validate())
}
