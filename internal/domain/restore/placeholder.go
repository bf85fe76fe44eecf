package restore

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/GriffinCanCode/tabsession/internal/domain/session"
)

// ScreenshotSource looks up stored screenshots. Implemented by assets.Store.
type ScreenshotSource interface {
	Get(ctx context.Context, key string) ([]byte, bool)
}

// Placeholder stands in for a restored tab until its page loads
type Placeholder struct {
	Record       session.Record
	URLs         []*url.URL
	CurrentIndex int

	screenshots ScreenshotSource
	shotMu      sync.Mutex
	shotLoaded  bool
	screenshot  []byte
	hasShot     bool
}

func newPlaceholder(record session.Record, screenshots ScreenshotSource) (*Placeholder, error) {
	if record.ID == "" || len(record.URLs) == 0 {
		return nil, fmt.Errorf("record %q has no navigation history", record.ID)
	}

	urls := make([]*url.URL, 0, len(record.URLs))
	for _, raw := range record.URLs {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", record.ID, err)
		}
		if u.Scheme == "" {
			return nil, fmt.Errorf("record %q: url %q has no scheme", record.ID, raw)
		}
		urls = append(urls, u)
	}

	return &Placeholder{
		Record:       record,
		URLs:         urls,
		CurrentIndex: session.ClampIndex(record.CurrentIndex, len(urls)),
		screenshots:  screenshots,
	}, nil
}

// ID returns the originating record id
func (p *Placeholder) ID() string {
	return p.Record.ID
}

// CurrentURL returns the URL at the current history index
func (p *Placeholder) CurrentURL() *url.URL {
	return p.URLs[p.CurrentIndex]
}

// Screenshot returns the stored screenshot, fetching it on first use.
// Later calls return the cached result without touching the store. A miss
// caused by ctx ending is not cached.
func (p *Placeholder) Screenshot(ctx context.Context) ([]byte, bool) {
	p.shotMu.Lock()
	defer p.shotMu.Unlock()

	if p.shotLoaded || p.screenshots == nil {
		return p.screenshot, p.hasShot
	}

	data, ok := p.screenshots.Get(ctx, p.Record.ID)
	if !ok && ctx.Err() != nil {
		return nil, false
	}
	p.screenshot, p.hasShot, p.shotLoaded = data, ok, true
	return data, ok
}

// PlaceholderSink receives restored placeholders, in archive order
type PlaceholderSink interface {
	AddPlaceholder(p *Placeholder)
}

// Collector is a PlaceholderSink that keeps what it receives
type Collector struct {
	mu    sync.Mutex
	items []*Placeholder
}

// AddPlaceholder implements PlaceholderSink
func (c *Collector) AddPlaceholder(p *Placeholder) {
	c.mu.Lock()
	c.items = append(c.items, p)
	c.mu.Unlock()
}

// Placeholders returns the collected placeholders
func (c *Collector) Placeholders() []*Placeholder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Placeholder(nil), c.items...)
}
