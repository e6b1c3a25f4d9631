package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLifecycle(t *testing.T) {
	m := newTestManager(t)

	a := m.Open(nil)
	b := m.Open(nil)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, m.Len())

	got, err := m.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, a.Cancel())
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())

	m.Remove(b.ID())
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, StateCancelled, b.State())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultLimits(), cfg.Limits)
	assert.Equal(t, "detect", string(cfg.Mode))
	assert.Equal(t, "high", string(cfg.AlertMinSeverity))
}
