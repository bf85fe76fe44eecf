package restore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tabsession/internal/domain/session"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/monitoring"
)

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context) ([]session.Record, bool, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]session.Record)
	return records, args.Bool(1), args.Error(2)
}

func (m *mockLoader) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type countingShots struct {
	calls atomic.Int32
	data  map[string][]byte
}

func (s *countingShots) Get(_ context.Context, key string) ([]byte, bool) {
	s.calls.Add(1)
	data, ok := s.data[key]
	return data, ok
}

func scenarioRecords() []session.Record {
	return []session.Record{
		{ID: "1", URLs: []string{"https://a"}, CurrentIndex: 0, IsSelected: true},
		{ID: "2", URLs: []string{"https://b", "https://c"}, CurrentIndex: 1},
	}
}

func TestRestoreScenario(t *testing.T) {
	c := NewController(nil, nil, Options{})
	sink := &Collector{}

	selected, err := c.Restore(context.Background(), scenarioRecords(), false, sink)
	require.NoError(t, err)
	require.NotNil(t, selected)

	assert.Equal(t, "1", selected.ID())
	assert.Equal(t, 0, selected.CurrentIndex)

	placeholders := sink.Placeholders()
	require.Len(t, placeholders, 2)
	assert.Equal(t, "2", placeholders[1].ID())
	assert.Equal(t, 1, placeholders[1].CurrentIndex)
	assert.Equal(t, "https://c", placeholders[1].CurrentURL().String())
	assert.Equal(t, StateIdle, c.State())
}

func TestRestoreSelectionFallback(t *testing.T) {
	tests := []struct {
		name    string
		records []session.Record
		want    string
	}{
		{
			name: "none flagged picks first non-private",
			records: []session.Record{
				{ID: "p", URLs: []string{"https://p"}, IsPrivate: true},
				{ID: "a", URLs: []string{"https://a"}},
				{ID: "b", URLs: []string{"https://b"}},
			},
			want: "a",
		},
		{
			name: "several flagged picks first non-private",
			records: []session.Record{
				{ID: "p", URLs: []string{"https://p"}, IsPrivate: true, IsSelected: true},
				{ID: "a", URLs: []string{"https://a"}},
				{ID: "b", URLs: []string{"https://b"}, IsSelected: true},
			},
			want: "a",
		},
		{
			name: "all private picks first",
			records: []session.Record{
				{ID: "p", URLs: []string{"https://p"}, IsPrivate: true},
				{ID: "q", URLs: []string{"https://q"}, IsPrivate: true},
			},
			want: "p",
		},
		{
			name: "flagged private wins when unique",
			records: []session.Record{
				{ID: "a", URLs: []string{"https://a"}},
				{ID: "p", URLs: []string{"https://p"}, IsPrivate: true, IsSelected: true},
			},
			want: "p",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(nil, nil, Options{})
			for i := 0; i < 3; i++ {
				selected, err := c.Restore(context.Background(), tt.records, false, &Collector{})
				require.NoError(t, err)
				require.NotNil(t, selected)
				assert.Equal(t, tt.want, selected.ID())
			}
		})
	}
}

func TestRestoreExcludesPrivate(t *testing.T) {
	c := NewController(nil, nil, Options{})
	records := []session.Record{
		{ID: "p", URLs: []string{"https://p"}, IsPrivate: true, IsSelected: true},
		{ID: "a", URLs: []string{"https://a"}},
	}
	sink := &Collector{}

	selected, err := c.Restore(context.Background(), records, true, sink)
	require.NoError(t, err)
	require.NotNil(t, selected)
	assert.Equal(t, "a", selected.ID())
	for _, p := range sink.Placeholders() {
		assert.False(t, p.Record.IsPrivate)
	}
}

func TestRestoreAllPrivateExcluded(t *testing.T) {
	c := NewController(nil, nil, Options{})
	records := []session.Record{{ID: "p", URLs: []string{"https://p"}, IsPrivate: true}}
	sink := &Collector{}

	selected, err := c.Restore(context.Background(), records, true, sink)
	require.NoError(t, err)
	assert.Nil(t, selected)
	assert.Empty(t, sink.Placeholders())
}

func TestRestoreSkipsBadRecords(t *testing.T) {
	metrics := monitoring.NewMetrics()
	c := NewController(nil, nil, Options{Metrics: metrics})
	records := []session.Record{
		{ID: "bad", URLs: []string{"://broken"}, IsSelected: true},
		{ID: "relative", URLs: []string{"no-scheme"}},
		{ID: "ok", URLs: []string{"https://ok"}},
	}
	sink := &Collector{}

	selected, err := c.Restore(context.Background(), records, false, sink)
	require.NoError(t, err)
	require.NotNil(t, selected)
	assert.Equal(t, "ok", selected.ID())
	assert.Len(t, sink.Placeholders(), 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RestoresSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TabsRestored))
}

type blockingSink struct {
	Collector
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSink) AddPlaceholder(p *Placeholder) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	s.Collector.AddPlaceholder(p)
}

func TestRestoreRejectsReentry(t *testing.T) {
	c := NewController(nil, nil, Options{})
	sink := &blockingSink{entered: make(chan struct{}), release: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := c.Restore(context.Background(), scenarioRecords(), false, sink)
		done <- err
	}()

	<-sink.entered
	assert.True(t, c.IsRestoring())

	other := &Collector{}
	selected, err := c.Restore(context.Background(), scenarioRecords(), false, other)
	assert.ErrorIs(t, err, ErrRestoreInProgress)
	assert.Nil(t, selected)
	assert.Empty(t, other.Placeholders())

	close(sink.release)
	require.NoError(t, <-done)
	assert.False(t, c.IsRestoring())
	assert.Len(t, sink.Placeholders(), 2)
}

func TestRestoreRequiresSink(t *testing.T) {
	c := NewController(nil, nil, Options{})
	_, err := c.Restore(context.Background(), scenarioRecords(), false, nil)
	assert.Error(t, err)
}

func TestScreenshotIsLoadedLazilyOnce(t *testing.T) {
	shots := &countingShots{data: map[string][]byte{"1": []byte("png")}}
	c := NewController(nil, shots, Options{})
	sink := &Collector{}

	_, err := c.Restore(context.Background(), scenarioRecords(), false, sink)
	require.NoError(t, err)
	assert.Equal(t, int32(0), shots.calls.Load())

	p := sink.Placeholders()[0]
	data, ok := p.Screenshot(context.Background())
	require.True(t, ok)
	assert.Equal(t, []byte("png"), data)
	_, _ = p.Screenshot(context.Background())
	assert.Equal(t, int32(1), shots.calls.Load())

	_, ok = sink.Placeholders()[1].Screenshot(context.Background())
	assert.False(t, ok)
}

func TestLoadArchivedCachesResult(t *testing.T) {
	loader := &mockLoader{}
	loader.On("Load", mock.Anything).Return(scenarioRecords(), false, nil).Once()
	c := NewController(loader, nil, Options{})

	assert.True(t, c.HasTabsToRestore(context.Background()))
	assert.Len(t, c.LoadArchived(context.Background()), 2)
	assert.Len(t, c.LoadArchived(context.Background()), 2)
	loader.AssertNumberOfCalls(t, "Load", 1)
}

func TestLoadArchivedFailureMeansNoTabs(t *testing.T) {
	loader := &mockLoader{}
	loader.On("Load", mock.Anything).Return(nil, false, errors.New("corrupt archive")).Once()
	c := NewController(loader, nil, Options{})

	assert.False(t, c.HasTabsToRestore(context.Background()))

	selected, err := c.RestoreStartup(context.Background(), false, &Collector{})
	require.NoError(t, err)
	assert.Nil(t, selected)
	loader.AssertNotCalled(t, "Commit", mock.Anything)
}

func TestRestoreStartupCommitsLegacyOnce(t *testing.T) {
	loader := &mockLoader{}
	loader.On("Load", mock.Anything).Return(scenarioRecords(), true, nil).Once()
	loader.On("Commit", mock.Anything).Return(nil).Once()
	c := NewController(loader, nil, Options{})

	selected, err := c.RestoreStartup(context.Background(), false, &Collector{})
	require.NoError(t, err)
	require.NotNil(t, selected)
	assert.Equal(t, "1", selected.ID())

	_, err = c.RestoreStartup(context.Background(), false, &Collector{})
	require.NoError(t, err)
	loader.AssertExpectations(t)
}

func TestRestoreStartupSkipsCommitForArchive(t *testing.T) {
	loader := &mockLoader{}
	loader.On("Load", mock.Anything).Return(scenarioRecords(), false, nil).Once()
	c := NewController(loader, nil, Options{})

	_, err := c.RestoreStartup(context.Background(), false, &Collector{})
	require.NoError(t, err)
	loader.AssertNotCalled(t, "Commit", mock.Anything)
}

func TestRestoreStopsOnCancelledContext(t *testing.T) {
	c := NewController(nil, nil, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := c.Restore(ctx, scenarioRecords(), false, &Collector{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, c.IsRestoring())
}

type cancellingSink struct {
	Collector
	cancel context.CancelFunc
}

func (s *cancellingSink) AddPlaceholder(p *Placeholder) {
	s.Collector.AddPlaceholder(p)
	s.cancel()
}

func TestRestoreKeepsTabsAddedBeforeCancel(t *testing.T) {
	records := []session.Record{
		{ID: "1", URLs: []string{"https://a"}},
		{ID: "2", URLs: []string{"https://b"}, IsSelected: true},
		{ID: "3", URLs: []string{"https://c"}},
	}
	c := NewController(nil, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &cancellingSink{cancel: cancel}

	selected, err := c.Restore(ctx, records, false, sink)
	require.NoError(t, err)
	require.NotNil(t, selected)
	assert.Equal(t, "1", selected.ID())
	require.Len(t, sink.Placeholders(), 1)
	assert.Same(t, selected, sink.Placeholders()[0])
	assert.False(t, c.IsRestoring())
}

type ctxAwareShots struct {
	calls atomic.Int32
	data  map[string][]byte
}

func (s *ctxAwareShots) Get(ctx context.Context, key string) ([]byte, bool) {
	s.calls.Add(1)
	if ctx.Err() != nil {
		return nil, false
	}
	data, ok := s.data[key]
	return data, ok
}

func TestScreenshotRetriesAfterCancelledRead(t *testing.T) {
	shots := &ctxAwareShots{data: map[string][]byte{"1": []byte("png")}}
	c := NewController(nil, shots, Options{})
	sink := &Collector{}
	_, err := c.Restore(context.Background(), scenarioRecords(), false, sink)
	require.NoError(t, err)
	p := sink.Placeholders()[0]

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := p.Screenshot(cancelled)
	assert.False(t, ok)

	data, ok := p.Screenshot(context.Background())
	require.True(t, ok)
	assert.Equal(t, []byte("png"), data)

	_, _ = p.Screenshot(context.Background())
	assert.Equal(t, int32(2), shots.calls.Load())
}
