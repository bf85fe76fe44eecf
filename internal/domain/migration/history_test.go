package migration

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockHistorySink struct {
	mock.Mock
}

func (m *mockHistorySink) ClearHistory(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockHistorySink) StoreDomains(ctx context.Context, domains map[string]int) error {
	return m.Called(ctx, domains).Error(0)
}

func (m *mockHistorySink) StoreSites(ctx context.Context, sites []Site) error {
	return m.Called(ctx, sites).Error(0)
}

func (m *mockHistorySink) StoreVisits(ctx context.Context, visits []Visit) error {
	return m.Called(ctx, visits).Error(0)
}

func visit(raw, title string, minute int) HistoryItem {
	return HistoryItem{
		Date: time.Date(2023, 5, 1, 10, minute, 0, 0, time.UTC),
		Page: LegacyPage{URL: raw, Title: title},
	}
}

func TestPrepareHistory(t *testing.T) {
	items := []HistoryItem{
		visit("https://www.ecosia.org/search?q=foo", "foo", 0),
		visit("https://ecosia.org/search?q=bar", "bar", 1),
		visit("https://www.ecosia.org/search?q=foo", "foo", 2),
		visit("http://localhost:8080/", "dev", 3),
		visit("about:blank", "", 4),
		visit("https://m.wikipedia.org/wiki/Go", "Go", 5),
	}

	data := PrepareHistory(items, nil)

	assert.Equal(t, map[string]int{"ecosia.org": 1, "wikipedia.org": 2}, data.Domains)
	require.Len(t, data.Sites, 3)
	assert.Equal(t, Site{ID: 1, URL: "https://www.ecosia.org/search?q=foo", Title: "foo", DomainID: 1}, data.Sites[0])
	assert.Equal(t, 2, data.Sites[2].DomainID)
	require.Len(t, data.Visits, 4)
	assert.Equal(t, 1, data.Visits[0].SiteID)
	assert.Equal(t, 1, data.Visits[2].SiteID)
	assert.Equal(t, 3, data.Visits[3].SiteID)
}

func TestPrepareHistoryReportsProgress(t *testing.T) {
	items := make([]HistoryItem, 120)
	for i := range items {
		items[i] = visit(fmt.Sprintf("https://site%d.example/", i), "", i%60)
	}

	var reports []float64
	PrepareHistory(items, func(p float64) { reports = append(reports, p) })

	assert.Equal(t, []float64{0, 50.0 / 120, 100.0 / 120}, reports)
}

func TestMigrateHistory(t *testing.T) {
	items := []HistoryItem{
		visit("https://ecosia.org/", "Ecosia", 0),
		visit("https://ecosia.org/", "Ecosia", 1),
	}
	sink := &mockHistorySink{}
	sink.On("ClearHistory", mock.Anything).Return(nil).Once()
	sink.On("StoreDomains", mock.Anything, map[string]int{"ecosia.org": 1}).Return(nil).Once()
	sink.On("StoreSites", mock.Anything, mock.MatchedBy(func(sites []Site) bool { return len(sites) == 1 })).Return(nil).Once()
	sink.On("StoreVisits", mock.Anything, mock.MatchedBy(func(visits []Visit) bool { return len(visits) == 2 })).Return(nil).Once()

	var last float64
	data, err := MigrateHistory(context.Background(), items, sink, func(p float64) { last = p })
	require.NoError(t, err)
	assert.Len(t, data.Visits, 2)
	assert.Equal(t, 1.0, last)
	sink.AssertExpectations(t)
}

func TestMigrateHistoryStopsOnSinkError(t *testing.T) {
	sink := &mockHistorySink{}
	sink.On("ClearHistory", mock.Anything).Return(nil)
	sink.On("StoreDomains", mock.Anything, mock.Anything).Return(errors.New("database is shut down"))

	_, err := MigrateHistory(context.Background(), []HistoryItem{visit("https://ecosia.org/", "", 0)}, sink, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store domains")
	sink.AssertNotCalled(t, "StoreSites", mock.Anything, mock.Anything)
}

func TestMigrateHistoryEmptyIsNoop(t *testing.T) {
	sink := &mockHistorySink{}

	_, err := MigrateHistory(context.Background(), nil, sink, nil)
	require.NoError(t, err)
	sink.AssertNotCalled(t, "ClearHistory", mock.Anything)
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://WWW.Example.COM/path", "example.com", true},
		{"https://mobile.twitter.com", "twitter.com", true},
		{"https://bücher.de", "xn--bcher-kva.de", true},
		{"http://localhost:3000", "", false},
		{"http://app.localhost", "", false},
		{"file:///etc/hosts", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			got, ok := NormalizeHost(u)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
