package session

import (
	"time"
)

// TabState is a point-in-time view of one live tab
type TabState struct {
	ID           string
	Title        string
	URLs         []string
	CurrentIndex int
	IsPrivate    bool
	LastUsed     time.Time
	CreatedAt    time.Time
	GroupID      string
	Screenshot   []byte
}

// Tab is a live tab owned by the UI layer.
// State must return a consistent copy of the tab's fields.
type Tab interface {
	State() TabState
}

// Record is the restorable state of one tab as written to the archive
type Record struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title,omitempty" yaml:"title,omitempty"`
	IsPrivate    bool      `json:"isPrivate" yaml:"private"`
	IsSelected   bool      `json:"isSelected" yaml:"selected"`
	URLs         []string  `json:"urls" yaml:"urls"`
	CurrentIndex int       `json:"currentIndex" yaml:"current_index"`
	LastUsed     time.Time `json:"lastUsed" yaml:"last_used"`
	CreatedAt    time.Time `json:"createdAt" yaml:"created_at"`
	GroupID      string    `json:"groupId,omitempty" yaml:"group_id,omitempty"`
}

// NewRecord builds a record from a captured tab state. It returns false when
// the tab has nothing to restore (no id or no navigation history).
func NewRecord(state TabState, selected bool, now time.Time) (Record, bool) {
	if state.ID == "" || len(state.URLs) == 0 {
		return Record{}, false
	}

	lastUsed := state.LastUsed
	if lastUsed.IsZero() {
		lastUsed = now
	}
	createdAt := state.CreatedAt
	if createdAt.IsZero() {
		createdAt = lastUsed
	}

	urls := make([]string, len(state.URLs))
	copy(urls, state.URLs)

	return Record{
		ID:           state.ID,
		Title:        state.Title,
		IsPrivate:    state.IsPrivate,
		IsSelected:   selected,
		URLs:         urls,
		CurrentIndex: ClampIndex(state.CurrentIndex, len(urls)),
		LastUsed:     NormalizeTime(lastUsed),
		CreatedAt:    NormalizeTime(createdAt),
		GroupID:      state.GroupID,
	}, true
}

// CurrentURL returns the active navigation entry
func (r Record) CurrentURL() string {
	if len(r.URLs) == 0 {
		return ""
	}
	return r.URLs[ClampIndex(r.CurrentIndex, len(r.URLs))]
}

// Valid reports whether the record satisfies its invariants
func (r Record) Valid() bool {
	return r.ID != "" && len(r.URLs) > 0 && r.CurrentIndex >= 0 && r.CurrentIndex < len(r.URLs)
}

// ClampIndex forces index into [0, n).
func ClampIndex(index, n int) int {
	if n <= 0 || index < 0 {
		return 0
	}
	if index >= n {
		return n - 1
	}
	return index
}

// NormalizeTime truncates t to millisecond precision in UTC, the resolution
// the archive stores.
func NormalizeTime(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
