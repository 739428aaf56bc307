package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Environments(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker"} {
		t.Run(env, func(t *testing.T) {
			l, err := New(Options{Env: env})
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNew_UnknownEnv(t *testing.T) {
	_, err := New(Options{Env: "staging"})
	assert.Error(t, err)
}

func TestNew_LevelOverride(t *testing.T) {
	l, err := New(Options{Env: "prod", Level: "warn"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = New(Options{Env: "prod", Level: "loud"})
	assert.Error(t, err)
}

func TestFromContext_NopWhenMissing(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestWith_PropagatesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))

	ctx, l := With(ctx, zap.String("ticker", "AAPL"))
	l.Info("resolved")
	FromContext(ctx).Info("downstream")

	require.Equal(t, 2, logs.Len())
	for _, e := range logs.All() {
		assert.Equal(t, "AAPL", e.ContextMap()["ticker"])
	}
}
