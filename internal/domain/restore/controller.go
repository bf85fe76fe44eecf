package restore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabsession/internal/domain/session"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/monitoring"
)

// ErrRestoreInProgress is returned when a restoration is already running
var ErrRestoreInProgress = errors.New("restoration already in progress")

// State of the controller
type State int32

const (
	StateIdle State = iota
	StateRestoring
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRestoring:
		return "restoring"
	default:
		return "unknown"
	}
}

// Loader supplies the records saved by the previous run. legacy reports that
// they were converted from the legacy format and still need Commit once
// restored.
type Loader interface {
	Load(ctx context.Context) (records []session.Record, legacy bool, err error)
	Commit(ctx context.Context) error
}

// Options configures a Controller
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Controller rebuilds the tab set from saved records
type Controller struct {
	loader      Loader
	screenshots ScreenshotSource
	logger      *zap.Logger
	metrics     *monitoring.Metrics

	state atomic.Int32

	loadOnce  sync.Once
	records   []session.Record
	legacy    bool
	committed atomic.Bool
}

// NewController creates a controller reading startup records from loader
func NewController(loader Loader, screenshots ScreenshotSource, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		loader:      loader,
		screenshots: screenshots,
		logger:      logger.Named("restore"),
		metrics:     opts.Metrics,
	}
}

// LoadArchived returns the startup records. The loader runs once; its
// result is cached for the life of the controller. A load failure yields no
// records.
func (c *Controller) LoadArchived(ctx context.Context) []session.Record {
	c.loadOnce.Do(func() {
		if c.loader == nil {
			return
		}
		records, legacy, err := c.loader.Load(ctx)
		if err != nil {
			c.logger.Warn("Starting without saved tabs", zap.Error(err))
			return
		}
		c.records = records
		c.legacy = legacy
		c.logger.Info("Loaded saved tabs",
			zap.Int("count", len(records)),
			zap.Bool("legacy", legacy))
	})
	return c.records
}

// HasTabsToRestore reports whether the startup records are non-empty
func (c *Controller) HasTabsToRestore(ctx context.Context) bool {
	return len(c.LoadArchived(ctx)) > 0
}

// IsRestoring reports whether a restoration is running
func (c *Controller) IsRestoring() bool {
	return State(c.state.Load()) == StateRestoring
}

// State returns the current controller state
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Restore materializes one placeholder per record into sink and returns the
// one to select. Private records are dropped when excludePrivate is set.
// Records whose URLs cannot be parsed are skipped. A call made while another
// restoration runs returns ErrRestoreInProgress and adds nothing.
//
// When ctx ends partway through, the placeholders already added stay in sink
// and the selection is made among them. An error is returned only if ctx
// ended before anything was added.
func (c *Controller) Restore(ctx context.Context, records []session.Record, excludePrivate bool, sink PlaceholderSink) (*Placeholder, error) {
	if sink == nil {
		return nil, fmt.Errorf("placeholder sink is required")
	}
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRestoring)) {
		c.metrics.IncRestoresRejected()
		return nil, ErrRestoreInProgress
	}
	defer c.state.Store(int32(StateIdle))

	candidates := records
	if excludePrivate {
		candidates = make([]session.Record, 0, len(records))
		for _, r := range records {
			if !r.IsPrivate {
				candidates = append(candidates, r)
			}
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var (
		placeholders []*Placeholder
		flagged      []*Placeholder
	)
	for i, record := range candidates {
		if err := ctx.Err(); err != nil {
			if len(placeholders) == 0 {
				return nil, fmt.Errorf("restore interrupted: %w", err)
			}
			c.logger.Warn("Restore interrupted, keeping restored tabs",
				zap.Int("restored", len(placeholders)),
				zap.Int("dropped", len(candidates)-i),
				zap.Error(err))
			break
		}

		p, err := newPlaceholder(record, c.screenshots)
		if err != nil {
			c.metrics.IncRecordsSkipped()
			c.logger.Warn("Skipping unrestorable tab", zap.String("id", record.ID), zap.Error(err))
			continue
		}

		sink.AddPlaceholder(p)
		placeholders = append(placeholders, p)
		if record.IsSelected {
			flagged = append(flagged, p)
		}
	}

	c.metrics.AddTabsRestored(len(placeholders))
	selected := selectPlaceholder(placeholders, flagged)
	if selected != nil {
		c.logger.Debug("Restored tabs",
			zap.Int("count", len(placeholders)),
			zap.String("selected", selected.ID()))
	}
	return selected, nil
}

// RestoreStartup restores the cached startup records. When they came from
// the legacy format, a successful restoration commits the migration.
func (c *Controller) RestoreStartup(ctx context.Context, excludePrivate bool, sink PlaceholderSink) (*Placeholder, error) {
	records := c.LoadArchived(ctx)

	selected, err := c.Restore(ctx, records, excludePrivate, sink)
	if err != nil {
		return nil, err
	}

	if c.legacy && c.committed.CompareAndSwap(false, true) {
		if err := c.loader.Commit(ctx); err != nil {
			c.committed.Store(false)
			c.logger.Error("Failed to record migration", zap.Error(err))
		}
	}
	return selected, nil
}

// selectPlaceholder picks the tab to focus: the single flagged placeholder,
// otherwise the first non-private one, otherwise the first.
func selectPlaceholder(placeholders, flagged []*Placeholder) *Placeholder {
	if len(placeholders) == 0 {
		return nil
	}
	if len(flagged) == 1 {
		return flagged[0]
	}
	for _, p := range placeholders {
		if !p.Record.IsPrivate {
			return p
		}
	}
	return placeholders[0]
}
