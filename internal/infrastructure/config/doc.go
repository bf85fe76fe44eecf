// Package config provides 12-factor configuration for the tab session engine.
//
// Configuration is loaded from environment variables with defaults; CLI flags
// may override the profile directory.
//
// Configuration Sections:
//   - Profile: profile directory and the file names inside it
//   - Persistence: debounce window of the archive writer
//   - Assets: screenshot read timeout and write circuit breaker
//   - Restore: private tab policy
//   - Logging: log level and output format
//   - Debug: listen address of the debug HTTP surface
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Println(cfg.Profile.ArchivePath())
//
// Environment Variables:
//   - TABSESSION_PROFILE_DIR, TABSESSION_ARCHIVE_NAME, TABSESSION_ASSET_DIR
//   - TABSESSION_DEBOUNCE, TABSESSION_EXCLUDE_PRIVATE
//   - TABSESSION_ASSET_READ_TIMEOUT, TABSESSION_ASSET_BREAKER_FAILURES
//   - LOG_LEVEL, LOG_DEV
package config
