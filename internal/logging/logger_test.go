package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_RedactsSecrets(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("provider ready", "provider", "openai", "api_key", "sk-123", "OLLAMA_TOKEN", "t")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "openai", fields["provider"])
	assert.Equal(t, "[REDACTED]", fields["api_key"])
	assert.Equal(t, "[REDACTED]", fields["OLLAMA_TOKEN"])
}

func TestLogger_With(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With("block_id", "blk_1")

	l.Warn("conflict", "graph_version", 3)

	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "blk_1", entry.ContextMap()["block_id"])
	assert.EqualValues(t, 3, entry.ContextMap()["graph_version"])
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New("dev", "loud")
	assert.Error(t, err)

	l, err := New("prod", "debug")
	require.NoError(t, err)
	assert.NotNil(t, l.SugaredLogger)
}
