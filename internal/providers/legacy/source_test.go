package legacy

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tabsession/internal/domain/migration"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestTabs(t *testing.T) {
	dir := t.TempDir()
	snapshot := base64.StdEncoding.EncodeToString([]byte("image"))
	writeFile(t, dir, TabsFile, `{
		"current": 1,
		"items": [
			{"id": "A", "page": {"url": "https://a.example", "title": "A"}, "snapshot": "`+snapshot+`"},
			{"id": "B", "page": {"url": "https://c.example"}, "history": ["https://b.example"]},
			{"id": "C"}
		]
	}`)

	tabs, err := NewFileSource(dir).Tabs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, tabs.Current)
	require.Len(t, tabs.Items, 3)
	assert.Equal(t, &migration.LegacyPage{URL: "https://a.example", Title: "A"}, tabs.Items[0].Page)
	assert.Equal(t, []byte("image"), tabs.Items[0].Snapshot)
	assert.Equal(t, []string{"https://b.example"}, tabs.Items[1].History)
	assert.Nil(t, tabs.Items[2].Page)
}

func TestTabsWithoutCurrent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, TabsFile, `{"items": []}`)

	tabs, err := NewFileSource(dir).Tabs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, tabs.Current)
	assert.Empty(t, tabs.Items)
}

func TestMissingFilesMeanNoLegacyData(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "legacy"))

	_, err := src.Tabs(context.Background())
	assert.ErrorIs(t, err, migration.ErrNoLegacyData)

	_, err = src.History(context.Background())
	assert.ErrorIs(t, err, migration.ErrNoLegacyData)
}

func TestMalformedTabs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, TabsFile, `{"items": [`)

	_, err := NewFileSource(dir).Tabs(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, migration.ErrNoLegacyData)
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, HistoryFile, `[
		{"date": "2023-05-01T10:00:00Z", "page": {"url": "https://ecosia.org", "title": "Ecosia"}},
		{"date": "2023-05-01T10:05:00Z", "page": {"url": "https://ecosia.org/search?q=go"}}
	]`)

	items, err := NewFileSource(dir).History(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].Date.Equal(time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Ecosia", items[0].Page.Title)
	assert.Equal(t, "https://ecosia.org/search?q=go", items[1].Page.URL)
}
