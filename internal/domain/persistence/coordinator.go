package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabsession/internal/domain/session"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/monitoring"
)

// DefaultDebounce is the delay between the last snapshot request and the
// archive write.
const DefaultDebounce = 100 * time.Millisecond

// ErrClosed is returned by operations on a closed coordinator.
var ErrClosed = errors.New("coordinator closed")

// ArchiveSink persists encoded records. Implemented by archive.File.
type ArchiveSink interface {
	Save(records []session.Record) (int, error)
	Remove() error
}

// AssetSink receives screenshots and collects orphans. Implemented by
// assets.Store.
type AssetSink interface {
	Put(key string, data []byte)
	ClearExcluding(keep map[string]struct{}) int
}

// Options configures a Coordinator
type Options struct {
	Debounce time.Duration
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
	Now      func() time.Time
}

type pendingWrite struct {
	gen     uint64
	records []session.Record
}

type stamp struct {
	lastUsed  time.Time
	createdAt time.Time
}

// Coordinator turns snapshot requests from the live tab set into debounced
// archive writes.
type Coordinator struct {
	archive  ArchiveSink
	assets   AssetSink
	debounce time.Duration
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time

	mu         sync.Mutex
	generation uint64
	timer      *time.Timer
	pending    *pendingWrite
	stamps     map[string]stamp
	closed     bool

	// inflight counts timer-fired writes that left pending; idle channels
	// are closed when it drops to zero.
	inflight int
	idle     []chan struct{}

	// Screenshot writes and orphan collection run on assetQueue. gcKeep is
	// the newest live set awaiting collection.
	assetQueue serialQueue
	gcKeep     map[string]struct{}
	gcQueued   bool

	// writeMu serializes archive writes; committed is the generation of the
	// last write that reached the sink.
	writeMu   sync.Mutex
	committed uint64
}

// NewCoordinator creates a coordinator writing to archive and collecting
// screenshots in assets.
func NewCoordinator(archive ArchiveSink, assets AssetSink, opts Options) *Coordinator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Coordinator{
		archive:  archive,
		assets:   assets,
		debounce: debounce,
		logger:   logger.Named("persistence"),
		metrics:  opts.Metrics,
		now:      now,
		stamps:   make(map[string]stamp),
	}
}

// Seed remembers the timestamps of restored records so later snapshots keep
// CreatedAt and never move LastUsed backwards.
func (c *Coordinator) Seed(records []session.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		c.stamps[r.ID] = stamp{lastUsed: r.LastUsed, createdAt: r.CreatedAt}
	}
}

// RequestSnapshot captures the tabs on the calling goroutine and schedules
// an archive write after the debounce window. A scheduled write that has not
// started yet is replaced. Screenshots of tabs outside the captured set are
// collected in the background.
func (c *Coordinator) RequestSnapshot(tabs []session.Tab, selected session.Tab) {
	c.metrics.IncSnapshotsRequested()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("Ignoring snapshot request after close")
		return
	}

	records := session.Capture(tabs, selected, c.now())
	c.applyStamps(records)
	c.collectLocked(session.IDs(records))

	c.generation++
	gen := c.generation
	c.stopTimerLocked()

	if len(records) == 0 {
		c.pending = nil
		c.mu.Unlock()
		if err := c.remove(gen); err != nil {
			c.logger.Warn("Failed to clear archive", zap.Error(err))
		}
		return
	}

	c.pending = &pendingWrite{gen: gen, records: records}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.fire(gen)
	})
	c.mu.Unlock()
}

// PreserveScreenshot queues the tab's current screenshot for storage under
// its id and returns without touching the disk.
func (c *Coordinator) PreserveScreenshot(tab session.Tab) {
	if tab == nil || c.assets == nil {
		return
	}
	state := tab.State()
	if state.ID == "" || len(state.Screenshot) == 0 {
		return
	}

	key := state.ID
	data := make([]byte, len(state.Screenshot))
	copy(data, state.Screenshot)
	c.assetQueue.submit(func() {
		c.assets.Put(key, data)
	})
}

// ClearArchive deletes the archive file and drops any scheduled write.
// It is idempotent.
func (c *Coordinator) ClearArchive() error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.stopTimerLocked()
	c.pending = nil
	c.mu.Unlock()

	return c.remove(gen)
}

// Flush runs the scheduled write, if any, immediately. It waits for that
// write, for a write the debounce timer already started, and for queued
// screenshot work, or until ctx is done.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	c.stopTimerLocked()
	var idle chan struct{}
	if c.inflight > 0 {
		idle = make(chan struct{})
		c.idle = append(c.idle, idle)
	}
	c.mu.Unlock()

	if p != nil || idle != nil {
		done := make(chan error, 1)
		go func() {
			var err error
			if p != nil {
				err = c.write(p)
			}
			if idle != nil {
				<-idle
			}
			done <- err
		}()

		select {
		case err := <-done:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return fmt.Errorf("flush: %w", ctx.Err())
		}
	}

	if err := c.assetQueue.wait(ctx); err != nil {
		return fmt.Errorf("flush screenshots: %w", err)
	}
	return nil
}

// Close flushes the scheduled write and rejects further snapshots
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.mu.Unlock()

	return c.Flush(ctx)
}

// Pending reports whether a write is scheduled but has not started
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	p := c.pending
	if p == nil || p.gen != gen {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.timer = nil
	c.inflight++
	c.mu.Unlock()

	_ = c.write(p)

	c.mu.Lock()
	c.inflight--
	if c.inflight == 0 {
		for _, ch := range c.idle {
			close(ch)
		}
		c.idle = nil
	}
	c.mu.Unlock()
}

// collectLocked schedules orphan collection against keep. Requests made
// before the queued collection runs are folded into it. Caller holds mu.
func (c *Coordinator) collectLocked(keep map[string]struct{}) {
	if c.assets == nil {
		return
	}
	c.gcKeep = keep
	if c.gcQueued {
		return
	}
	c.gcQueued = true
	c.assetQueue.submit(func() {
		c.mu.Lock()
		keep := c.gcKeep
		c.gcKeep = nil
		c.gcQueued = false
		c.mu.Unlock()

		c.assets.ClearExcluding(keep)
	})
}

func (c *Coordinator) write(p *pendingWrite) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if p.gen <= c.committed {
		c.metrics.IncWritesSuperseded()
		return nil
	}

	timer := monitoring.NewTimer()
	size, err := c.archive.Save(p.records)
	c.metrics.RecordArchiveWrite(err, len(p.records), size, timer.Elapsed())
	if err != nil {
		c.logger.Error("Failed to write archive",
			zap.Uint64("generation", p.gen),
			zap.Int("tabs", len(p.records)),
			zap.Error(err))
		return fmt.Errorf("write archive: %w", err)
	}

	c.committed = p.gen
	c.logger.Debug("Archive written",
		zap.Uint64("generation", p.gen),
		zap.Int("tabs", len(p.records)),
		zap.Int("bytes", size))
	return nil
}

func (c *Coordinator) remove(gen uint64) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if gen > c.committed {
		c.committed = gen
	}
	if err := c.archive.Remove(); err != nil {
		return fmt.Errorf("remove archive: %w", err)
	}
	return nil
}

// applyStamps keeps CreatedAt stable and LastUsed non-decreasing per id.
// Caller holds mu.
func (c *Coordinator) applyStamps(records []session.Record) {
	next := make(map[string]stamp, len(records))
	for i := range records {
		r := &records[i]
		if prev, ok := c.stamps[r.ID]; ok {
			if !prev.createdAt.IsZero() {
				r.CreatedAt = prev.createdAt
			}
			if prev.lastUsed.After(r.LastUsed) {
				r.LastUsed = prev.lastUsed
			}
		}
		next[r.ID] = stamp{lastUsed: r.LastUsed, createdAt: r.CreatedAt}
	}
	c.stamps = next
}

// Caller holds mu.
func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
