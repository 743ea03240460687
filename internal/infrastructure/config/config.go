package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LEDGER_DATABASE_PATH
const EnvPrefix = "LEDGER"

// Config holds all store configuration
type Config struct {
	Database DatabaseConfig
	Log      LogConfig
	Backup   BackupConfig
	Actor    ActorConfig
}

// DatabaseConfig holds the SQLite store settings
type DatabaseConfig struct {
	Path          string
	BusyTimeout   time.Duration
	MaxOpenConns  int
	MaxIdleConns  int
	LogLevel      string // silent, error, warn, info
	SlowThreshold time.Duration
	// AllowNewerSchema lets a binary open a store written by a newer release
	AllowNewerSchema bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// BackupConfig holds snapshot archive settings
type BackupConfig struct {
	Dir      string
	MaxCount int
	Compress bool
	S3       S3Config
}

// S3Config holds the optional remote archive target
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
}

// Enabled reports whether an S3 bucket is configured
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// ActorConfig identifies the local operator in audit entries written by the CLI
type ActorConfig struct {
	UserID     int64
	Username   string
	DeviceInfo string
}

// Load reads configuration. Priority (highest to lowest):
// 1. Environment variables with LEDGER_ prefix (e.g., LEDGER_DATABASE_PATH)
// 2. the given file, or ledger.toml in the working directory or ~/.ledger
// 3. Built-in defaults
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("ledger")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ledger")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Database: DatabaseConfig{
			Path:             v.GetString("database.path"),
			BusyTimeout:      v.GetDuration("database.busy_timeout"),
			MaxOpenConns:     v.GetInt("database.max_open_conns"),
			MaxIdleConns:     v.GetInt("database.max_idle_conns"),
			LogLevel:         v.GetString("database.log_level"),
			SlowThreshold:    v.GetDuration("database.slow_threshold"),
			AllowNewerSchema: v.GetBool("database.allow_newer_schema"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Backup: BackupConfig{
			Dir:      v.GetString("backup.dir"),
			MaxCount: v.GetInt("backup.max_count"),
			Compress: !v.IsSet("backup.compress") || v.GetBool("backup.compress"),
			S3: S3Config{
				Bucket:          v.GetString("backup.s3.bucket"),
				Region:          v.GetString("backup.s3.region"),
				Endpoint:        v.GetString("backup.s3.endpoint"),
				AccessKeyID:     v.GetString("backup.s3.access_key_id"),
				SecretAccessKey: v.GetString("backup.s3.secret_access_key"),
				Prefix:          v.GetString("backup.s3.prefix"),
				UsePathStyle:    v.GetBool("backup.s3.use_path_style"),
			},
		},
		Actor: ActorConfig{
			UserID:     v.GetInt64("actor.user_id"),
			Username:   v.GetString("actor.username"),
			DeviceInfo: v.GetString("actor.device_info"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration Load produces with no file and no env
func Default() *Config {
	cfg := &Config{Backup: BackupConfig{Compress: true}}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = "ledger.db"
	}
	if cfg.Database.BusyTimeout == 0 {
		cfg.Database.BusyTimeout = 5 * time.Second
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 4
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 100 * time.Millisecond
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = "backups"
	}
	if cfg.Backup.MaxCount == 0 {
		cfg.Backup.MaxCount = 10
	}
	if cfg.Backup.S3.Region == "" {
		cfg.Backup.S3.Region = "us-east-1"
	}
	if cfg.Backup.S3.Prefix == "" {
		cfg.Backup.S3.Prefix = "ledger-backups/"
	}
	if cfg.Actor.UserID == 0 {
		cfg.Actor.UserID = 1
	}
	if cfg.Actor.Username == "" {
		cfg.Actor.Username = "local"
	}
}

func (c *Config) validate() error {
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1, got %d", c.Database.MaxOpenConns)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Database.BusyTimeout < 0 {
		return errors.New("database.busy_timeout cannot be negative")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Backup.MaxCount < 0 {
		return errors.New("backup.max_count cannot be negative")
	}
	if c.Backup.S3.Enabled() && (c.Backup.S3.AccessKeyID == "") != (c.Backup.S3.SecretAccessKey == "") {
		return errors.New("backup.s3 access_key_id and secret_access_key must be set together")
	}
	return nil
}

// DSN builds the go-sqlite3 connection string. Transactions begin IMMEDIATE so
// a read-compare-write sequence holds the write lock from its first read.
func (d *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("_busy_timeout", strconv.FormatInt(d.BusyTimeout.Milliseconds(), 10))
	params.Set("_txlock", "immediate")
	if d.Path != ":memory:" {
		params.Set("_journal_mode", "WAL")
		params.Set("_synchronous", "NORMAL")
	}
	return "file:" + d.Path + "?" + params.Encode()
}
