// Package prefs stores application preferences, including the legacy
// migration flag, in a TOML file.
package prefs
