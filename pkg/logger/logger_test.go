package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerRejectsBadSettings(t *testing.T) {
	_, err := NewLogger("loud", "json")
	assert.Error(t, err)

	_, err = NewLogger("info", "xml")
	assert.Error(t, err)
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).With("session", "default")

	log.Info("Query finished", "query", "GSM", "status", "data")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Query finished", entry.Message)
	assert.Equal(t, map[string]any{"session": "default", "query": "GSM", "status": "data"}, entry.ContextMap())
}

func TestWithFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uyap.log")
	log, err := NewLogger("info", "text", WithFile(path))
	require.NoError(t, err)

	log.Debug("hidden")
	log.Warn("Popup not closed", "depth", 1)
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"Popup not closed"`)
	assert.Contains(t, string(data), `"depth":1`)
	assert.NotContains(t, string(data), "hidden")
}
