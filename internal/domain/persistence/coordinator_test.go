package persistence

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tabsession/internal/domain/assets"
	"github.com/GriffinCanCode/tabsession/internal/domain/session"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/monitoring"
	fixture "github.com/GriffinCanCode/tabsession/internal/shared/testutil"
)

type fakeArchive struct {
	mu      sync.Mutex
	saves   [][]session.Record
	savedAt []time.Time
	removes int
	err     error

	// started receives once per Save; Save then blocks until release is
	// closed. Both are optional.
	started chan struct{}
	release chan struct{}
}

func (f *fakeArchive) Save(records []session.Record) (int, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.saves = append(f.saves, records)
	f.savedAt = append(f.savedAt, time.Now())
	return len(records) * 100, nil
}

func (f *fakeArchive) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	return nil
}

func (f *fakeArchive) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeArchive) removed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removes
}

func (f *fakeArchive) last() []session.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		return nil
	}
	return f.saves[len(f.saves)-1]
}

func tab(id, title string, urls ...string) session.Tab {
	t := fixture.Tab(id, urls...)
	t.Title = title
	return t
}

var pngBytes = fixture.PNG("shot")

func TestRequestSnapshotCoalesces(t *testing.T) {
	archive := &fakeArchive{}
	c := NewCoordinator(archive, nil, Options{Debounce: 100 * time.Millisecond})

	var lastCall time.Time
	for i := 1; i <= 5; i++ {
		a := tab("A", fmt.Sprintf("v%d", i), "https://a")
		c.RequestSnapshot([]session.Tab{a}, a)
		lastCall = time.Now()
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return archive.writes() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, archive.writes())

	records := archive.last()
	require.Len(t, records, 1)
	assert.Equal(t, "v5", records[0].Title)
	assert.True(t, records[0].IsSelected)

	archive.mu.Lock()
	delay := archive.savedAt[0].Sub(lastCall)
	archive.mu.Unlock()
	assert.GreaterOrEqual(t, delay, 90*time.Millisecond)
}

func TestCloseFlushesPendingWrite(t *testing.T) {
	archive := &fakeArchive{}
	c := NewCoordinator(archive, nil, Options{Debounce: time.Hour})

	c.RequestSnapshot([]session.Tab{tab("A", "a", "https://a")}, nil)
	require.True(t, c.Pending())

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, 1, archive.writes())
	assert.False(t, c.Pending())

	c.RequestSnapshot([]session.Tab{tab("B", "b", "https://b")}, nil)
	assert.False(t, c.Pending())
	assert.ErrorIs(t, c.Close(context.Background()), ErrClosed)
	assert.Equal(t, 1, archive.writes())
}

func TestCloseWaitsForStartedWrite(t *testing.T) {
	archive := &fakeArchive{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := NewCoordinator(archive, nil, Options{Debounce: time.Millisecond})

	c.RequestSnapshot([]session.Tab{tab("A", "a", "https://a")}, nil)
	select {
	case <-archive.started:
	case <-time.After(time.Second):
		t.Fatal("debounced write never started")
	}
	require.False(t, c.Pending())

	closed := make(chan error, 1)
	go func() {
		closed <- c.Close(context.Background())
	}()

	select {
	case err := <-closed:
		t.Fatalf("Close returned before the write finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(archive.release)
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the write finished")
	}
	assert.Equal(t, 1, archive.writes())
}

func TestFlushGivesUpWhenContextEnds(t *testing.T) {
	archive := &fakeArchive{started: make(chan struct{}, 1), release: make(chan struct{})}
	defer close(archive.release)
	c := NewCoordinator(archive, nil, Options{Debounce: time.Millisecond})

	c.RequestSnapshot([]session.Tab{tab("A", "a", "https://a")}, nil)
	<-archive.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Flush(ctx), context.DeadlineExceeded)
}

func TestFlushWithoutPendingIsNoop(t *testing.T) {
	archive := &fakeArchive{}
	c := NewCoordinator(archive, nil, Options{})

	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 0, archive.writes())
}

func TestFlushReportsWriteFailure(t *testing.T) {
	archive := &fakeArchive{err: errors.New("disk full")}
	metrics := monitoring.NewMetrics()
	c := NewCoordinator(archive, nil, Options{Debounce: time.Hour, Metrics: metrics})

	c.RequestSnapshot([]session.Tab{tab("A", "a", "https://a")}, nil)

	err := c.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ArchiveWrites.WithLabelValues("error")))
}

func TestRequestSnapshotCollectsOrphans(t *testing.T) {
	store, err := assets.NewStore(filepath.Join(t.TempDir(), "TabScreenshots"), assets.Options{})
	require.NoError(t, err)
	c := NewCoordinator(&fakeArchive{}, store, Options{Debounce: time.Hour})

	a := session.StaticTab{ID: "A", URLs: []string{"https://a"}, Screenshot: pngBytes}
	b := session.StaticTab{ID: "B", URLs: []string{"https://b"}, Screenshot: pngBytes}
	c.PreserveScreenshot(a)
	c.PreserveScreenshot(b)

	c.RequestSnapshot([]session.Tab{a, b}, a)
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, []string{"A", "B"}, store.Keys())

	c.RequestSnapshot([]session.Tab{a}, a)
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, []string{"A"}, store.Keys())
}

type blockingAssets struct {
	mu      sync.Mutex
	gate    chan struct{}
	puts    map[string][]byte
	cleared []map[string]struct{}
}

func newBlockingAssets() *blockingAssets {
	return &blockingAssets{gate: make(chan struct{}), puts: make(map[string][]byte)}
}

func (b *blockingAssets) Put(key string, data []byte) {
	<-b.gate
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts[key] = data
}

func (b *blockingAssets) ClearExcluding(keep map[string]struct{}) int {
	<-b.gate
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleared = append(b.cleared, keep)
	removed := 0
	for key := range b.puts {
		if _, ok := keep[key]; !ok {
			delete(b.puts, key)
			removed++
		}
	}
	return removed
}

func TestPreserveScreenshotDoesNotBlockCaller(t *testing.T) {
	store := newBlockingAssets()
	c := NewCoordinator(&fakeArchive{}, store, Options{Debounce: time.Hour})

	shot := fixture.PNG("A")
	want := append([]byte(nil), shot...)

	returned := make(chan struct{})
	go func() {
		c.PreserveScreenshot(session.StaticTab{ID: "A", URLs: []string{"https://a"}, Screenshot: shot})
		c.RequestSnapshot([]session.Tab{tab("A", "a", "https://a")}, nil)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("caller blocked on the screenshot store")
	}

	// The caller may reuse its buffer once the call returns.
	shot[0] = 0

	close(store.gate)
	require.NoError(t, c.Flush(context.Background()))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, want, store.puts["A"])
	require.Len(t, store.cleared, 1)
	assert.Contains(t, store.cleared[0], "A")
}

func TestOrphanCollectionFoldsBurstIntoNewestSet(t *testing.T) {
	store := newBlockingAssets()
	c := NewCoordinator(&fakeArchive{}, store, Options{Debounce: time.Hour})

	c.PreserveScreenshot(session.StaticTab{ID: "A", URLs: []string{"https://a"}, Screenshot: pngBytes})
	c.PreserveScreenshot(session.StaticTab{ID: "B", URLs: []string{"https://b"}, Screenshot: pngBytes})
	c.RequestSnapshot([]session.Tab{tab("A", "a", "https://a"), tab("B", "b", "https://b")}, nil)
	c.RequestSnapshot([]session.Tab{tab("B", "b", "https://b")}, nil)

	close(store.gate)
	require.NoError(t, c.Flush(context.Background()))

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.cleared, 1)
	assert.NotContains(t, store.cleared[0], "A")
	assert.Contains(t, store.puts, "B")
	assert.NotContains(t, store.puts, "A")
}

func TestPreserveScreenshotSkipsEmpty(t *testing.T) {
	store, err := assets.NewStore(t.TempDir(), assets.Options{})
	require.NoError(t, err)
	c := NewCoordinator(&fakeArchive{}, store, Options{})

	c.PreserveScreenshot(session.StaticTab{ID: "A", URLs: []string{"https://a"}})
	c.PreserveScreenshot(nil)

	assert.Empty(t, store.Keys())
}

func TestClearArchiveDropsPendingWrite(t *testing.T) {
	archive := &fakeArchive{}
	c := NewCoordinator(archive, nil, Options{Debounce: 30 * time.Millisecond})

	c.RequestSnapshot([]session.Tab{tab("A", "a", "https://a")}, nil)
	require.NoError(t, c.ClearArchive())
	require.NoError(t, c.ClearArchive())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, archive.writes())
	assert.Equal(t, 2, archive.removed())
}

func TestEmptySnapshotClearsArchive(t *testing.T) {
	archive := &fakeArchive{}
	c := NewCoordinator(archive, nil, Options{Debounce: time.Hour})

	c.RequestSnapshot([]session.Tab{tab("A", "a", "https://a")}, nil)
	c.RequestSnapshot([]session.Tab{session.StaticTab{ID: "blank"}}, nil)

	assert.False(t, c.Pending())
	assert.Equal(t, 1, archive.removed())
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 0, archive.writes())
}

func TestStaleWriteIsSkipped(t *testing.T) {
	archive := &fakeArchive{}
	metrics := monitoring.NewMetrics()
	c := NewCoordinator(archive, nil, Options{Debounce: time.Hour, Metrics: metrics})

	records := []session.Record{{ID: "A", URLs: []string{"https://a"}}}
	require.NoError(t, c.write(&pendingWrite{gen: 2, records: records}))
	require.NoError(t, c.write(&pendingWrite{gen: 1, records: records}))

	assert.Equal(t, 1, archive.writes())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WritesSuperseded))
}

func TestTimestampsStayMonotonic(t *testing.T) {
	archive := &fakeArchive{}
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)
	c := NewCoordinator(archive, nil, Options{Debounce: time.Hour})

	c.RequestSnapshot([]session.Tab{session.StaticTab{
		ID: "A", URLs: []string{"https://a"}, CreatedAt: created, LastUsed: later,
	}}, nil)
	require.NoError(t, c.Flush(context.Background()))

	// A tab reporting an older last-used time and a new creation time
	c.RequestSnapshot([]session.Tab{session.StaticTab{
		ID: "A", URLs: []string{"https://a"}, CreatedAt: later, LastUsed: created,
	}}, nil)
	require.NoError(t, c.Flush(context.Background()))

	records := archive.last()
	require.Len(t, records, 1)
	assert.Equal(t, created, records[0].CreatedAt)
	assert.Equal(t, later, records[0].LastUsed)
}

func TestSeedKeepsRestoredCreationTime(t *testing.T) {
	archive := &fakeArchive{}
	created := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := fixture.NewClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	c := NewCoordinator(archive, nil, Options{Debounce: time.Hour, Now: clock.Now})

	c.Seed([]session.Record{{ID: "A", URLs: []string{"https://a"}, CreatedAt: created, LastUsed: created}})
	c.RequestSnapshot([]session.Tab{tab("A", "a", "https://a")}, nil)
	require.NoError(t, c.Flush(context.Background()))

	records := archive.last()
	require.Len(t, records, 1)
	assert.Equal(t, created, records[0].CreatedAt)
	assert.Equal(t, clock.Now(), records[0].LastUsed)

	clock.Advance(time.Minute)
	c.RequestSnapshot([]session.Tab{tab("A", "a", "https://a")}, nil)
	require.NoError(t, c.Flush(context.Background()))

	records = archive.last()
	assert.Equal(t, created, records[0].CreatedAt)
	assert.Equal(t, clock.Now(), records[0].LastUsed)
}
