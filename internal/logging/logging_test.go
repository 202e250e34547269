package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/credisync/internal/config"
)

func TestNew_Fallback(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.LogConfig
		check func(t *testing.T, out string)
	}{
		{
			name: "text at info hides debug",
			cfg:  config.LogConfig{Level: "info", Format: "text"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, `msg="Sync completed"`)
				assert.Contains(t, out, "entry_id=01J")
				assert.NotContains(t, out, "debug details")
			},
		},
		{
			name: "json at debug",
			cfg:  config.LogConfig{Level: "DEBUG", Format: "json"},
			check: func(t *testing.T, out string) {
				lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
				require.Len(t, lines, 2)
				var rec map[string]any
				require.NoError(t, json.Unmarshal(lines[1], &rec))
				assert.Equal(t, "Sync completed", rec["msg"])
				assert.Equal(t, "01J", rec["entry_id"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, closer, err := New(tt.cfg, &buf)
			require.NoError(t, err)
			defer func() { _ = closer.Close() }()

			logger.Debug("debug details")
			logger.Info("Sync completed", "entry_id", "01J")
			tt.check(t, buf.String())
		})
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "client.log")

	var fallback bytes.Buffer
	logger, closer, err := New(config.LogConfig{Level: "warn", Format: "text", File: path, MaxSizeMB: 1, MaxBackups: 1}, &fallback)
	require.NoError(t, err)

	logger.Warn("Server is not reachable")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Server is not reachable")
	assert.Empty(t, fallback.String())
}

func TestNew_Invalid(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "loud", Format: "text"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, _, err = New(config.LogConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
