package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefaultLoggerIsNop(t *testing.T) {
	require.NotNil(t, Logger)
	assert.NotPanics(t, func() { Named("test").Infow("hello", FieldService, "Orders") })
}

func TestInitialize(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	require.NoError(t, Initialize(Options{Debug: true}))
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Initialize(Options{JSON: true}))
	assert.False(t, Logger.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.InfoLevel))
}

func TestNewLeavesGlobalAlone(t *testing.T) {
	prev := Logger
	l, err := New(Options{Debug: true})
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.Same(t, prev, Logger)
}
