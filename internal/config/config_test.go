package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadClient_Defaults(t *testing.T) {
	cfg, err := LoadClient("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, "credisync.db", cfg.DBPath)
	assert.Equal(t, "default", cfg.ScopeID)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 15*time.Second, cfg.Sync.ProbeInterval)
	assert.Equal(t, 30*time.Second, cfg.Sync.RequestTimeout)
	assert.Equal(t, 5, cfg.Sync.MaxAttempts)
	assert.Equal(t, time.Second, cfg.ConflictTolerance)
	assert.Equal(t, "backups", cfg.Backup.Dir)
	assert.Equal(t, 5, cfg.Backup.Keep)
	assert.Equal(t, time.Hour, cfg.Backup.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Log.File)
}

func TestLoadClient_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server_url: https://sync.example.com
scope_id: company-42
sync:
  interval: 2m
  max_attempts: 8
backup:
  keep: 3
log:
  level: debug
  file: /var/log/credisync.log
`)
	// Окружение важнее файла
	t.Setenv("CREDISYNC_SYNC_MAX_ATTEMPTS", "10")
	t.Setenv("CREDISYNC_CONFLICT_TOLERANCE", "500ms")

	cfg, err := LoadClient(path)
	require.NoError(t, err)

	assert.Equal(t, "https://sync.example.com", cfg.ServerURL)
	assert.Equal(t, "company-42", cfg.ScopeID)
	assert.Equal(t, 2*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 10, cfg.Sync.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.ConflictTolerance)
	assert.Equal(t, 3, cfg.Backup.Keep)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/credisync.log", cfg.Log.File)
	// Не заданное в файле берется из значений по умолчанию
	assert.Equal(t, "credisync.db", cfg.DBPath)
}

func TestLoadClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{name: "bad server url", content: "server_url: localhost:8080", invalid: true},
		{name: "zero attempts", content: "sync:\n  max_attempts: 0", invalid: true},
		{name: "empty scope", content: `scope_id: ""`, invalid: true},
		{name: "unknown log level", content: "log:\n  level: verbose", invalid: true},
		{name: "negative tolerance", content: "conflict:\n  tolerance: -1s", invalid: true},
		{name: "broken yaml", content: "sync: [", invalid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadClient(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Equal(t, tt.invalid, errors.Is(err, ErrInvalidConfig))
		})
	}

	t.Run("explicit file must exist", func(t *testing.T) {
		_, err := LoadClient(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadServer(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadServer("")
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, "credisync-server.db", cfg.DBPath)
		assert.Equal(t, 600, cfg.RateLimit.Requests)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("CREDISYNC_ADDR", "127.0.0.1:9000")
		t.Setenv("CREDISYNC_LOG_FORMAT", "json")
		cfg, err := LoadServer("")
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
		assert.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("invalid rate limit", func(t *testing.T) {
		_, err := LoadServer(writeConfig(t, "rate_limit:\n  requests: 10\n  window: 0s"))
		assert.True(t, errors.Is(err, ErrInvalidConfig))
	})
}
