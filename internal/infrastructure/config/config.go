package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all engine configuration.
type Config struct {
	Profile     ProfileConfig
	Persistence PersistenceConfig
	Assets      AssetConfig
	Restore     RestoreConfig
	Logging     LogConfig
	Debug       DebugConfig
}

// ProfileConfig locates the on-disk state of one browser profile.
type ProfileConfig struct {
	Dir         string `envconfig:"TABSESSION_PROFILE_DIR" default:"profile.profile"`
	ArchiveName string `envconfig:"TABSESSION_ARCHIVE_NAME" default:"tabsState.archive"`
	AssetDir    string `envconfig:"TABSESSION_ASSET_DIR" default:"TabScreenshots"`
	PrefsName   string `envconfig:"TABSESSION_PREFS_NAME" default:"prefs.toml"`
	LegacyDir   string `envconfig:"TABSESSION_LEGACY_DIR" default:"legacy"`
	HistoryDB   string `envconfig:"TABSESSION_HISTORY_DB" default:"history.db"`
}

// PersistenceConfig holds the debounced write pipeline settings.
type PersistenceConfig struct {
	Debounce time.Duration `envconfig:"TABSESSION_DEBOUNCE" default:"100ms"`
}

// AssetConfig holds screenshot store settings.
type AssetConfig struct {
	ReadTimeout     time.Duration `envconfig:"TABSESSION_ASSET_READ_TIMEOUT" default:"2s"`
	BreakerFailures uint32        `envconfig:"TABSESSION_ASSET_BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `envconfig:"TABSESSION_ASSET_BREAKER_COOLDOWN" default:"30s"`
}

// RestoreConfig holds restoration policy.
type RestoreConfig struct {
	ExcludePrivate bool `envconfig:"TABSESSION_EXCLUDE_PRIVATE" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// DebugConfig holds the optional debug HTTP surface settings.
type DebugConfig struct {
	Addr              string   `envconfig:"TABSESSION_DEBUG_ADDR" default:"127.0.0.1:9477"`
	AllowOrigins      []string `envconfig:"TABSESSION_DEBUG_ORIGINS" default:"http://localhost,http://127.0.0.1"`
	RequestsPerSecond int      `envconfig:"TABSESSION_DEBUG_RPS" default:"20"`
	Burst             int      `envconfig:"TABSESSION_DEBUG_BURST" default:"40"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Profile: ProfileConfig{
			Dir:         "profile.profile",
			ArchiveName: "tabsState.archive",
			AssetDir:    "TabScreenshots",
			PrefsName:   "prefs.toml",
			LegacyDir:   "legacy",
			HistoryDB:   "history.db",
		},
		Persistence: PersistenceConfig{
			Debounce: 100 * time.Millisecond,
		},
		Assets: AssetConfig{
			ReadTimeout:     2 * time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Restore: RestoreConfig{
			ExcludePrivate: false,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Debug: DebugConfig{
			Addr:              "127.0.0.1:9477",
			AllowOrigins:      []string{"http://localhost", "http://127.0.0.1"},
			RequestsPerSecond: 20,
			Burst:             40,
		},
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Profile.Dir == "" {
		return fmt.Errorf("profile dir is required")
	}
	if c.Profile.ArchiveName == "" || c.Profile.AssetDir == "" {
		return fmt.Errorf("archive name and asset dir are required")
	}
	if filepath.Base(c.Profile.ArchiveName) != c.Profile.ArchiveName {
		return fmt.Errorf("archive name %q must not contain a path", c.Profile.ArchiveName)
	}
	if c.Persistence.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	if c.Debug.RequestsPerSecond < 0 || c.Debug.Burst < 0 {
		return fmt.Errorf("debug rate limits must not be negative")
	}
	return nil
}

// WithProfileDir returns a copy of the config rooted at dir.
func (c Config) WithProfileDir(dir string) *Config {
	c.Profile.Dir = dir
	return &c
}

// ArchivePath returns the path of the tab archive file.
func (p ProfileConfig) ArchivePath() string {
	return filepath.Join(p.Dir, p.ArchiveName)
}

// AssetPath returns the screenshot directory.
func (p ProfileConfig) AssetPath() string {
	return filepath.Join(p.Dir, p.AssetDir)
}

// PrefsPath returns the preference file path.
func (p ProfileConfig) PrefsPath() string {
	return filepath.Join(p.Dir, p.PrefsName)
}

// LegacyPath returns the directory holding legacy tab data.
func (p ProfileConfig) LegacyPath() string {
	return filepath.Join(p.Dir, p.LegacyDir)
}

// HistoryPath returns the history database path.
func (p ProfileConfig) HistoryPath() string {
	return filepath.Join(p.Dir, p.HistoryDB)
}
