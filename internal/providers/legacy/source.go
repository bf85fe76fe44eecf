package legacy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/tabsession/internal/domain/migration"
)

// File names inside the legacy directory
const (
	TabsFile    = "tabs.json"
	HistoryFile = "history.json"
)

type pageJSON struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

type tabJSON struct {
	ID       string    `json:"id"`
	Page     *pageJSON `json:"page,omitempty"`
	History  []string  `json:"history,omitempty"`
	Snapshot []byte    `json:"snapshot,omitempty"`
}

type tabsJSON struct {
	Current *int      `json:"current,omitempty"`
	Items   []tabJSON `json:"items"`
}

type historyJSON struct {
	Date time.Time `json:"date"`
	Page pageJSON  `json:"page"`
}

// FileSource reads the legacy tab list and history exported by the previous
// browser. It never writes to its directory.
type FileSource struct {
	dir string
}

// NewFileSource creates a source for the legacy directory
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Dir returns the legacy directory
func (s *FileSource) Dir() string {
	return s.dir
}

// Tabs implements migration.LegacySource
func (s *FileSource) Tabs(ctx context.Context) (migration.LegacyTabs, error) {
	var doc tabsJSON
	if err := s.read(ctx, TabsFile, &doc); err != nil {
		return migration.LegacyTabs{}, err
	}

	tabs := migration.LegacyTabs{Current: -1, Items: make([]migration.LegacyTab, 0, len(doc.Items))}
	if doc.Current != nil {
		tabs.Current = *doc.Current
	}
	for _, item := range doc.Items {
		tab := migration.LegacyTab{
			ID:       item.ID,
			History:  item.History,
			Snapshot: item.Snapshot,
		}
		if item.Page != nil {
			tab.Page = &migration.LegacyPage{URL: item.Page.URL, Title: item.Page.Title}
		}
		tabs.Items = append(tabs.Items, tab)
	}
	return tabs, nil
}

// History implements migration.HistorySource
func (s *FileSource) History(ctx context.Context) ([]migration.HistoryItem, error) {
	var doc []historyJSON
	if err := s.read(ctx, HistoryFile, &doc); err != nil {
		return nil, err
	}

	items := make([]migration.HistoryItem, 0, len(doc))
	for _, h := range doc {
		items = append(items, migration.HistoryItem{
			Date: h.Date,
			Page: migration.LegacyPage{URL: h.Page.URL, Title: h.Page.Title},
		})
	}
	return items, nil
}

func (s *FileSource) read(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return migration.ErrNoLegacyData
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	if err := sonic.ConfigStd.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}
