package migration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabsession/internal/domain/session"
)

// MigratedKey is the preference recording a completed migration
const MigratedKey = "migrated"

// Prefs is the key-value preference store holding the migration flag
type Prefs interface {
	Bool(key string) (bool, error)
	SetBool(key string, value bool) error
}

// ArchiveReader loads the current archive. Implemented by archive.File.
type ArchiveReader interface {
	Load() ([]session.Record, error)
}

// StartupLoader chooses the startup records: converted legacy tabs until the
// migration flag is set, the archive afterwards.
type StartupLoader struct {
	prefs    Prefs
	archive  ArchiveReader
	legacy   LegacySource
	migrator *Migrator
	logger   *zap.Logger
}

// NewStartupLoader creates a loader. legacy may be nil when the profile has
// no legacy data.
func NewStartupLoader(prefs Prefs, archive ArchiveReader, legacy LegacySource, migrator *Migrator, logger *zap.Logger) *StartupLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StartupLoader{
		prefs:    prefs,
		archive:  archive,
		legacy:   legacy,
		migrator: migrator,
		logger:   logger.Named("startup"),
	}
}

// Migrated reports whether the migration flag is set
func (l *StartupLoader) Migrated() (bool, error) {
	return l.prefs.Bool(MigratedKey)
}

// Load returns the startup records. legacy is true when they still need a
// Commit after a successful restoration.
func (l *StartupLoader) Load(ctx context.Context) ([]session.Record, bool, error) {
	migrated, err := l.Migrated()
	if err != nil {
		l.logger.Warn("Failed to read migration flag, using archive", zap.Error(err))
		migrated = true
	}
	if migrated {
		records, err := l.archive.Load()
		return records, false, err
	}

	if l.legacy == nil {
		records, err := l.archive.Load()
		return records, true, err
	}

	tabs, err := l.legacy.Tabs(ctx)
	if errors.Is(err, ErrNoLegacyData) {
		l.logger.Info("No legacy tabs found")
		records, err := l.archive.Load()
		return records, true, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("read legacy tabs: %w", err)
	}

	records, err := l.migrator.Convert(ctx, tabs)
	if err != nil {
		return nil, false, err
	}
	return records, true, nil
}

// Commit sets the migration flag
func (l *StartupLoader) Commit(_ context.Context) error {
	if err := l.prefs.SetBool(MigratedKey, true); err != nil {
		return fmt.Errorf("set %s: %w", MigratedKey, err)
	}
	l.logger.Info("Legacy migration committed")
	return nil
}
