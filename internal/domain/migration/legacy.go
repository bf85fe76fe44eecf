package migration

import (
	"context"
	"errors"
	"time"
)

// ErrNoLegacyData is returned by sources when no legacy data exists
var ErrNoLegacyData = errors.New("no legacy data")

// LegacyPage is a page as recorded by the legacy tab list
type LegacyPage struct {
	URL   string
	Title string
}

// LegacyTab is one entry of the legacy tab list. Page is nil for tabs that
// never navigated. History holds earlier URLs, oldest first.
type LegacyTab struct {
	ID       string
	Page     *LegacyPage
	History  []string
	Snapshot []byte
}

// LegacyTabs is the legacy tab list. Current is the index of the selected
// tab, or -1.
type LegacyTabs struct {
	Current int
	Items   []LegacyTab
}

// LegacySource reads the legacy tab list. It never modifies its data.
type LegacySource interface {
	Tabs(ctx context.Context) (LegacyTabs, error)
}

// HistoryItem is one visit recorded by the legacy browser
type HistoryItem struct {
	Date time.Time
	Page LegacyPage
}

// HistorySource reads legacy browsing history
type HistorySource interface {
	History(ctx context.Context) ([]HistoryItem, error)
}
