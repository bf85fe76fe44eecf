package session

import (
	"time"
)

// Capture converts the live tabs into records in order. The selected tab is
// matched by id. Tabs without restorable state are dropped.
func Capture(tabs []Tab, selected Tab, now time.Time) []Record {
	selectedID := ""
	if selected != nil {
		selectedID = selected.State().ID
	}

	records := make([]Record, 0, len(tabs))
	seen := make(map[string]struct{}, len(tabs))
	for _, tab := range tabs {
		if tab == nil {
			continue
		}
		state := tab.State()
		if _, dup := seen[state.ID]; dup {
			continue
		}
		record, ok := NewRecord(state, selectedID != "" && state.ID == selectedID, now)
		if !ok {
			continue
		}
		seen[record.ID] = struct{}{}
		records = append(records, record)
	}
	return records
}

// IDs returns the set of record ids
func IDs(records []Record) map[string]struct{} {
	ids := make(map[string]struct{}, len(records))
	for _, r := range records {
		ids[r.ID] = struct{}{}
	}
	return ids
}

// StaticTab is a Tab backed by a fixed state, used by tools and tests
type StaticTab TabState

// State implements Tab
func (t StaticTab) State() TabState {
	return TabState(t)
}
