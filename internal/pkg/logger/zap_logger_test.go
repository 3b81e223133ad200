package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolatedLogger_WritesJSONWithModule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ws.log")
	l := NewIsolatedLogger(path)

	l.Info("WS", "session opened", map[string]interface{}{"session_id": "abc"})
	l.Debug("WS", "below file level", nil)
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"module":"WS"`)
	assert.Contains(t, lines[0], `"message":"session opened"`)
	assert.Contains(t, lines[0], `"session_id":"abc"`)
}

func TestNopLogger_AcceptsNilDetails(t *testing.T) {
	var l ILogger = NewNopLogger()
	assert.NotPanics(t, func() {
		l.Error("TEST", "nothing", nil)
		l.Warn("TEST", "nothing", map[string]interface{}{"error": "boom"})
	})
}
