package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.ElementTimeout)
	assert.Equal(t, 5*time.Second, cfg.ShortTimeout)
	assert.Equal(t, 3, cfg.ClickAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.ClickBackoff)
	assert.False(t, cfg.HeadlessMode)
	assert.Equal(t, 5*time.Minute, cfg.LoginTimeout)
	assert.Equal(t, 30*time.Minute, cfg.RunTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CLICK_ATTEMPTS", "5")
	t.Setenv("PARTY_INTERVAL_MS", "100")
	t.Setenv("HEADLESS_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.ClickAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.PartyInterval)
	assert.True(t, cfg.HeadlessMode)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric timeout", "ELEMENT_TIMEOUT", "soon"},
		{"zero attempts", "CLICK_ATTEMPTS", "0"},
		{"non-numeric backoff", "CLICK_BACKOFF_MS", "half"},
		{"non-numeric login timeout", "LOGIN_TIMEOUT", "never"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
