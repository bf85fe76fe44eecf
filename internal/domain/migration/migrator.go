package migration

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabsession/internal/domain/session"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tabsession/internal/shared/id"
)

// ErrMigrationFailure marks a legacy tab that could not be converted
var ErrMigrationFailure = errors.New("migration failure")

// AssetSink receives converted screenshots. Implemented by assets.Store.
type AssetSink interface {
	Put(key string, data []byte)
	ClearExcluding(keep map[string]struct{}) int
}

// Options configures a Migrator
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	Now     func() time.Time
}

// Migrator converts the legacy tab list into session records
type Migrator struct {
	assets  AssetSink
	logger  *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
}

// NewMigrator creates a migrator storing screenshots in assets
func NewMigrator(assets AssetSink, opts Options) *Migrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Migrator{
		assets:  assets,
		logger:  logger.Named("migration"),
		metrics: opts.Metrics,
		now:     now,
	}
}

// Convert maps each legacy tab with a page to a record, carrying over the
// selection and copying snapshots into the asset store under the new id.
// Screenshots not belonging to a converted tab are removed afterwards, so a
// retried conversion leaves exactly one screenshot per tab.
func (m *Migrator) Convert(ctx context.Context, legacy LegacyTabs) ([]session.Record, error) {
	now := m.now()

	selectedID := ""
	if legacy.Current >= 0 && legacy.Current < len(legacy.Items) {
		selectedID = legacy.Items[legacy.Current].ID
	}

	records := make([]session.Record, 0, len(legacy.Items))
	seen := make(map[string]struct{}, len(legacy.Items))
	for _, tab := range legacy.Items {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("convert legacy tabs: %w", err)
		}
		if tab.Page == nil {
			continue
		}

		record, err := convertTab(tab, selectedID != "" && tab.ID == selectedID, now)
		if err != nil {
			m.metrics.IncTabsMigrated("skipped")
			m.logger.Warn("Skipping legacy tab", zap.String("legacy_id", tab.ID), zap.Error(err))
			continue
		}
		if _, dup := seen[record.ID]; dup {
			m.metrics.IncTabsMigrated("skipped")
			continue
		}
		seen[record.ID] = struct{}{}
		records = append(records, record)
		m.metrics.IncTabsMigrated("ok")

		if m.assets != nil && len(tab.Snapshot) > 0 {
			m.assets.Put(record.ID, tab.Snapshot)
		}
	}

	if m.assets != nil {
		m.assets.ClearExcluding(seen)
	}

	m.logger.Info("Converted legacy tabs",
		zap.Int("legacy", len(legacy.Items)),
		zap.Int("converted", len(records)))
	return records, nil
}

func convertTab(tab LegacyTab, selected bool, now time.Time) (session.Record, error) {
	if tab.ID == "" {
		return session.Record{}, fmt.Errorf("%w: tab has no id", ErrMigrationFailure)
	}
	if err := checkURL(tab.Page.URL); err != nil {
		return session.Record{}, fmt.Errorf("%w: tab %s: %v", ErrMigrationFailure, tab.ID, err)
	}

	urls := make([]string, 0, len(tab.History)+1)
	for _, raw := range tab.History {
		if checkURL(raw) == nil {
			urls = append(urls, raw)
		}
	}
	if len(urls) == 0 || urls[len(urls)-1] != tab.Page.URL {
		urls = append(urls, tab.Page.URL)
	}

	record, ok := session.NewRecord(session.TabState{
		ID:           id.FromLegacy(tab.ID),
		Title:        tab.Page.Title,
		URLs:         urls,
		CurrentIndex: len(urls) - 1,
		LastUsed:     now,
		CreatedAt:    now,
	}, selected, now)
	if !ok {
		return session.Record{}, fmt.Errorf("%w: tab %s has nothing to restore", ErrMigrationFailure, tab.ID)
	}
	return record, nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" {
		return fmt.Errorf("url %q has no scheme", raw)
	}
	return nil
}
