package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "warn", false},
		{"debug", "debug", false},
		{" INFO ", "info", false},
		{"warning", "warn", false},
		{"error", "error", false},
		{"loud", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lvl, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, lvl.String())
		})
	}
}

func TestNew(t *testing.T) {
	l, err := New("debug", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l, err = New("error", false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))

	_, err = New("nope", false)
	assert.Error(t, err)
}

func TestContextLogger(t *testing.T) {
	ctx, logs := TestContext()
	ctx = With(ctx, zap.String("step", "ground"))

	L(ctx).Info("located element")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "located element", entries[0].Message)
	assert.Equal(t, "ground", entries[0].ContextMap()["step"])
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	assert.Equal(t, zap.L(), FromContext(context.Background()))
	assert.NotPanics(t, func() { L(NopContext()).Debug("quiet") })
}
