package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabsession/internal/domain/archive"
	"github.com/GriffinCanCode/tabsession/internal/domain/assets"
	"github.com/GriffinCanCode/tabsession/internal/domain/migration"
	"github.com/GriffinCanCode/tabsession/internal/domain/persistence"
	"github.com/GriffinCanCode/tabsession/internal/domain/restore"
	"github.com/GriffinCanCode/tabsession/internal/domain/session"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/config"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/logging"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/tabsession/internal/providers/history"
	"github.com/GriffinCanCode/tabsession/internal/providers/legacy"
	"github.com/GriffinCanCode/tabsession/internal/providers/prefs"
)

// Engine wires the tab session components of one profile
type Engine struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics

	archive     *archive.File
	assets      *assets.Store
	prefs       *prefs.Store
	legacy      *legacy.FileSource
	migrator    *migration.Migrator
	loader      *migration.StartupLoader
	coordinator *persistence.Coordinator
	controller  *restore.Controller
}

// New creates an engine for cfg. A nil logger uses the configured level.
func New(cfg *config.Config, logger *logging.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	}

	logger.Info("Initializing tab session engine",
		zap.String("profile", cfg.Profile.Dir),
		zap.Duration("debounce", cfg.Persistence.Debounce),
	)

	metrics := monitoring.NewMetrics()

	breaker := resilience.New("assets", resilience.Settings{
		Threshold: cfg.Assets.BreakerFailures,
		Cooldown:  cfg.Assets.BreakerCooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	store, err := assets.NewStore(cfg.Profile.AssetPath(), assets.Options{
		ReadTimeout: cfg.Assets.ReadTimeout,
		Breaker:     breaker,
		Logger:      logger.Component("assets"),
		Metrics:     metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open screenshot store: %w", err)
	}

	file := archive.NewFile(cfg.Profile.ArchivePath())
	preferences := prefs.NewStore(cfg.Profile.PrefsPath())
	legacySource := legacy.NewFileSource(cfg.Profile.LegacyPath())

	migrator := migration.NewMigrator(store, migration.Options{
		Logger:  logger.Component("migration"),
		Metrics: metrics,
	})
	loader := migration.NewStartupLoader(preferences, file, legacySource, migrator, logger.Component("migration"))

	coordinator := persistence.NewCoordinator(file, store, persistence.Options{
		Debounce: cfg.Persistence.Debounce,
		Logger:   logger.Component("persistence"),
		Metrics:  metrics,
	})
	controller := restore.NewController(loader, store, restore.Options{
		Logger:  logger.Component("restore"),
		Metrics: metrics,
	})

	return &Engine{
		config:      cfg,
		logger:      logger,
		metrics:     metrics,
		archive:     file,
		assets:      store,
		prefs:       preferences,
		legacy:      legacySource,
		migrator:    migrator,
		loader:      loader,
		coordinator: coordinator,
		controller:  controller,
	}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() *config.Config { return e.config }

// Logger returns the engine logger
func (e *Engine) Logger() *logging.Logger { return e.logger }

// Metrics returns the engine metrics
func (e *Engine) Metrics() *monitoring.Metrics { return e.metrics }

// Archive returns the archive file
func (e *Engine) Archive() *archive.File { return e.archive }

// Assets returns the screenshot store
func (e *Engine) Assets() *assets.Store { return e.assets }

// Prefs returns the preference store
func (e *Engine) Prefs() *prefs.Store { return e.prefs }

// Coordinator returns the persistence coordinator
func (e *Engine) Coordinator() *persistence.Coordinator { return e.coordinator }

// Controller returns the restoration controller
func (e *Engine) Controller() *restore.Controller { return e.controller }

// RequestSnapshot forwards to the coordinator
func (e *Engine) RequestSnapshot(tabs []session.Tab, selected session.Tab) {
	e.coordinator.RequestSnapshot(tabs, selected)
}

// PreserveScreenshot forwards to the coordinator
func (e *Engine) PreserveScreenshot(tab session.Tab) {
	e.coordinator.PreserveScreenshot(tab)
}

// ClearArchive forwards to the coordinator
func (e *Engine) ClearArchive() error {
	return e.coordinator.ClearArchive()
}

// HasTabsToRestore reports whether the previous run left tabs behind
func (e *Engine) HasTabsToRestore(ctx context.Context) bool {
	return e.controller.HasTabsToRestore(ctx)
}

// IsRestoring reports whether a restoration is running
func (e *Engine) IsRestoring() bool {
	return e.controller.IsRestoring()
}

// Restore rebuilds the saved tab set into sink and returns the tab to
// select. The restored records seed the coordinator so their creation times
// survive the next write.
func (e *Engine) Restore(ctx context.Context, sink restore.PlaceholderSink) (*restore.Placeholder, error) {
	selected, err := e.controller.RestoreStartup(ctx, e.config.Restore.ExcludePrivate, sink)
	if err != nil {
		return nil, err
	}
	e.coordinator.Seed(e.controller.LoadArchived(ctx))
	return selected, nil
}

// MigrateHistory copies legacy history into the history database. A profile
// without legacy history is not an error.
func (e *Engine) MigrateHistory(ctx context.Context, progress func(float64)) (migration.HistoryData, error) {
	items, err := e.legacy.History(ctx)
	if errors.Is(err, migration.ErrNoLegacyData) {
		e.logger.Info("No legacy history found")
		return migration.HistoryData{Domains: map[string]int{}}, nil
	}
	if err != nil {
		return migration.HistoryData{}, fmt.Errorf("read legacy history: %w", err)
	}

	db, err := history.Open(e.config.Profile.HistoryPath())
	if err != nil {
		return migration.HistoryData{}, err
	}
	defer db.Close()

	data, err := migration.MigrateHistory(ctx, items, db, progress)
	if err != nil {
		return data, err
	}
	e.logger.Info("Migrated legacy history",
		zap.Int("domains", len(data.Domains)),
		zap.Int("sites", len(data.Sites)),
		zap.Int("visits", len(data.Visits)))
	return data, nil
}

// MigrateTabs converts legacy tabs into the archive unless the migration
// flag is already set. It returns the number of converted tabs.
func (e *Engine) MigrateTabs(ctx context.Context) (int, error) {
	migrated, err := e.loader.Migrated()
	if err != nil {
		return 0, fmt.Errorf("read migration flag: %w", err)
	}
	if migrated {
		return 0, nil
	}

	records, fromLegacy, err := e.loader.Load(ctx)
	if err != nil {
		return 0, err
	}
	if fromLegacy && len(records) > 0 {
		if _, err := e.archive.Save(records); err != nil {
			return 0, err
		}
	}
	if err := e.loader.Commit(ctx); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Migrated reports whether the legacy migration flag is set
func (e *Engine) Migrated() (bool, error) {
	return e.loader.Migrated()
}

// CollectGarbage removes screenshots of tabs missing from the archive. It
// returns the number of removed screenshots.
func (e *Engine) CollectGarbage() (int, error) {
	records, err := e.archive.Load()
	if err != nil {
		return 0, fmt.Errorf("load archive: %w", err)
	}
	return e.assets.ClearExcluding(session.IDs(records)), nil
}

// Flush writes any pending snapshot now
func (e *Engine) Flush(ctx context.Context) error {
	return e.coordinator.Flush(ctx)
}

// Shutdown flushes the pending snapshot and stops accepting new ones
func (e *Engine) Shutdown(ctx context.Context) error {
	e.logger.Info("Shutting down tab session engine")

	err := e.coordinator.Close(ctx)
	if errors.Is(err, persistence.ErrClosed) {
		err = nil
	}
	if err != nil {
		e.logger.Error("Failed to flush tabs on shutdown", zap.Error(err))
	}

	_ = e.logger.Sync()
	return err
}
