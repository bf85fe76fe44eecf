// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tabsession/internal/domain/session"
)

// PNG returns a blob that sniffs as image/png, suffixed with seed so
// fixtures can be told apart.
func PNG(seed string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), seed...)
}

// LegacyTabsJSON is a legacy tab list with two tabs, the first selected
const LegacyTabsJSON = `{
	"current": 0,
	"items": [
		{"id": "0d1a7e4b-5c9f-4f63-9b8e-2c6f7a1b3d40", "page": {"url": "https://ecosia.org", "title": "Ecosia"}},
		{"id": "7f3e9a21-8b44-4c1d-a6e2-5d0b9c8f1e72", "page": {"url": "https://go.dev", "title": "Go"}}
	]
}`

// LegacyHistoryJSON holds two visits on two domains
const LegacyHistoryJSON = `[
	{"date": "2023-05-01T10:00:00Z", "page": {"url": "https://www.ecosia.org/", "title": "Ecosia"}},
	{"date": "2023-05-01T10:01:00Z", "page": {"url": "https://go.dev/", "title": "Go"}}
]`

// WriteLegacy writes the legacy fixtures into <profile>/legacy
func WriteLegacy(t *testing.T, profile string) {
	t.Helper()
	dir := filepath.Join(profile, "legacy")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tabs.json"), []byte(LegacyTabsJSON), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "history.json"), []byte(LegacyHistoryJSON), 0o600))
}

// Tab returns a live tab positioned on its last URL
func Tab(id string, urls ...string) session.StaticTab {
	return session.StaticTab{
		ID:           id,
		Title:        id,
		URLs:         urls,
		CurrentIndex: len(urls) - 1,
	}
}

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
