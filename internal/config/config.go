// Package config loads client and server settings.
//
// Priority (highest to lowest): command-line flags applied by the binaries,
// environment variables with the CREDISYNC_ prefix (CREDISYNC_SYNC_INTERVAL),
// the YAML config file, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "CREDISYNC"

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text, json
	File       string // пусто: stderr
	MaxSizeMB  int    // размер файла до ротации
	MaxBackups int    // сколько старых файлов хранить
}

// SyncConfig holds dispatcher and scheduler settings
type SyncConfig struct {
	Interval       time.Duration // периодический запуск синхронизации
	ProbeInterval  time.Duration // проверка доступности сервера
	RequestTimeout time.Duration // таймаут одного вызова сервера
	MaxAttempts    int           // потолок попыток для записи outbox
}

// BackupConfig holds automatic backup settings
type BackupConfig struct {
	Dir      string
	Interval time.Duration // 0 отключает автоматические копии в daemon
	Keep     int
}

// ClientConfig holds field client configuration
type ClientConfig struct {
	ServerURL         string
	DBPath            string
	ScopeID           string
	Log               LogConfig
	Backup            BackupConfig
	Sync              SyncConfig
	ConflictTolerance time.Duration // окно LWW, в котором правки считаются одновременными
}

// RateLimitConfig holds per-device request limits
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// ServerConfig holds reference server configuration
type ServerConfig struct {
	Addr            string
	DBPath          string
	Log             LogConfig
	RateLimit       RateLimitConfig
	ShutdownTimeout time.Duration
}

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

func newViper(path, name string, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		// Явно указанный файл обязан существовать
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			// Файл не найден: используем значения по умолчанию и окружение
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func logDefaults(defaults map[string]any) map[string]any {
	defaults["log.level"] = "info"
	defaults["log.format"] = "text"
	defaults["log.file"] = ""
	defaults["log.max_size_mb"] = 10
	defaults["log.max_backups"] = 3
	return defaults
}

func readLog(v *viper.Viper) LogConfig {
	return LogConfig{
		Level:      v.GetString("log.level"),
		Format:     v.GetString("log.format"),
		File:       v.GetString("log.file"),
		MaxSizeMB:  v.GetInt("log.max_size_mb"),
		MaxBackups: v.GetInt("log.max_backups"),
	}
}

// LoadClient reads the client configuration. path may be empty: credisync.yaml
// in the working directory is used when present.
func LoadClient(path string) (*ClientConfig, error) {
	v, err := newViper(path, "credisync", logDefaults(map[string]any{
		"server_url":           "http://localhost:8080",
		"db_path":              "credisync.db",
		"scope_id":             "default",
		"sync.interval":        "30s",
		"sync.probe_interval":  "15s",
		"sync.request_timeout": "30s",
		"sync.max_attempts":    5,
		"conflict.tolerance":   "1s",
		"backup.dir":           "backups",
		"backup.interval":      "1h",
		"backup.keep":          5,
	}))
	if err != nil {
		return nil, err
	}

	cfg := &ClientConfig{
		ServerURL: v.GetString("server_url"),
		DBPath:    v.GetString("db_path"),
		ScopeID:   v.GetString("scope_id"),
		Sync: SyncConfig{
			Interval:       v.GetDuration("sync.interval"),
			ProbeInterval:  v.GetDuration("sync.probe_interval"),
			RequestTimeout: v.GetDuration("sync.request_timeout"),
			MaxAttempts:    v.GetInt("sync.max_attempts"),
		},
		ConflictTolerance: v.GetDuration("conflict.tolerance"),
		Backup: BackupConfig{
			Dir:      v.GetString("backup.dir"),
			Interval: v.GetDuration("backup.interval"),
			Keep:     v.GetInt("backup.keep"),
		},
		Log: readLog(v),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the client configuration
func (c *ClientConfig) Validate() error {
	var errs []error

	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server_url must be an http(s) URL, got %q", c.ServerURL))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.ScopeID == "" {
		errs = append(errs, errors.New("scope_id is required"))
	}
	if c.Sync.Interval <= 0 {
		errs = append(errs, errors.New("sync.interval must be positive"))
	}
	if c.Sync.ProbeInterval <= 0 {
		errs = append(errs, errors.New("sync.probe_interval must be positive"))
	}
	if c.Sync.RequestTimeout <= 0 {
		errs = append(errs, errors.New("sync.request_timeout must be positive"))
	}
	if c.Sync.MaxAttempts < 1 {
		errs = append(errs, errors.New("sync.max_attempts must be at least 1"))
	}
	if c.ConflictTolerance < 0 {
		errs = append(errs, errors.New("conflict.tolerance must not be negative"))
	}
	if c.Backup.Keep < 1 {
		errs = append(errs, errors.New("backup.keep must be at least 1"))
	}
	if c.Backup.Interval < 0 {
		errs = append(errs, errors.New("backup.interval must not be negative"))
	}
	errs = append(errs, c.Log.validate()...)

	return joinInvalid(errs)
}

// LoadServer reads the server configuration. path may be empty:
// credisync-server.yaml in the working directory is used when present.
func LoadServer(path string) (*ServerConfig, error) {
	v, err := newViper(path, "credisync-server", logDefaults(map[string]any{
		"addr":                ":8080",
		"db_path":             "credisync-server.db",
		"rate_limit.requests": 600,
		"rate_limit.window":   "1m",
		"shutdown_timeout":    "10s",
	}))
	if err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Addr:   v.GetString("addr"),
		DBPath: v.GetString("db_path"),
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("rate_limit.requests"),
			Window:   v.GetDuration("rate_limit.window"),
		},
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		Log:             readLog(v),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the server configuration
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.RateLimit.Requests < 0 {
		errs = append(errs, errors.New("rate_limit.requests must not be negative"))
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.window must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	errs = append(errs, c.Log.validate()...)

	return joinInvalid(errs)
}

func (l LogConfig) validate() []error {
	var errs []error
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", l.Format))
	}
	return errs
}

func joinInvalid(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
