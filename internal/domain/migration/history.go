package migration

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// progressEvery is how many history items pass between progress reports
const progressEvery = 50

// Site is a distinct history URL
type Site struct {
	ID       int
	URL      string
	Title    string
	DomainID int
}

// Visit is a single visit to a site
type Visit struct {
	SiteID int
	Date   time.Time
}

// HistoryData is legacy history prepared for the history store
type HistoryData struct {
	Domains map[string]int
	Sites   []Site
	Visits  []Visit
}

// HistoryWriteSink is the subset of the history store used by migration
type HistoryWriteSink interface {
	ClearHistory(ctx context.Context) error
	StoreDomains(ctx context.Context, domains map[string]int) error
	StoreSites(ctx context.Context, sites []Site) error
	StoreVisits(ctx context.Context, visits []Visit) error
}

// PrepareHistory groups legacy visits into distinct domains and sites.
// Items with internal or unparseable hosts are ignored. progress, if set,
// receives the completed fraction every progressEvery items.
func PrepareHistory(items []HistoryItem, progress func(float64)) HistoryData {
	data := HistoryData{Domains: make(map[string]int)}
	sites := make(map[string]int)

	for i, item := range items {
		if progress != nil && i%progressEvery == 0 {
			progress(float64(i) / float64(len(items)))
		}

		u, err := url.Parse(item.Page.URL)
		if err != nil {
			continue
		}
		domain, ok := NormalizeHost(u)
		if !ok {
			continue
		}

		domainID, ok := data.Domains[domain]
		if !ok {
			domainID = len(data.Domains) + 1
			data.Domains[domain] = domainID
		}

		key := u.String()
		siteID, ok := sites[key]
		if !ok {
			siteID = len(data.Sites) + 1
			sites[key] = siteID
			data.Sites = append(data.Sites, Site{
				ID:       siteID,
				URL:      key,
				Title:    item.Page.Title,
				DomainID: domainID,
			})
		}

		data.Visits = append(data.Visits, Visit{SiteID: siteID, Date: item.Date.UTC()})
	}
	return data
}

// MigrateHistory replaces the contents of sink with the prepared legacy
// history. Clearing first makes a retried migration produce the same rows.
func MigrateHistory(ctx context.Context, items []HistoryItem, sink HistoryWriteSink, progress func(float64)) (HistoryData, error) {
	if len(items) == 0 {
		return HistoryData{Domains: map[string]int{}}, nil
	}

	data := PrepareHistory(items, progress)

	if err := sink.ClearHistory(ctx); err != nil {
		return data, fmt.Errorf("clear history: %w", err)
	}
	if err := sink.StoreDomains(ctx, data.Domains); err != nil {
		return data, fmt.Errorf("store domains: %w", err)
	}
	if err := sink.StoreSites(ctx, data.Sites); err != nil {
		return data, fmt.Errorf("store sites: %w", err)
	}
	if err := sink.StoreVisits(ctx, data.Visits); err != nil {
		return data, fmt.Errorf("store visits: %w", err)
	}

	if progress != nil {
		progress(1)
	}
	return data, nil
}

var strippedPrefixes = []string{"www.", "mobile.", "m."}

// NormalizeHost returns the lower-case ASCII host of u without common
// mobile and www prefixes. It reports false for non-web and local URLs.
func NormalizeHost(u *url.URL) (string, bool) {
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	host, err := idna.ToASCII(strings.ToLower(u.Hostname()))
	if err != nil || host == "" {
		return "", false
	}
	if isInternalHost(host) {
		return "", false
	}

	for _, prefix := range strippedPrefixes {
		if strings.HasPrefix(host, prefix) && len(host) > len(prefix) {
			host = host[len(prefix):]
			break
		}
	}
	return host, true
}

func isInternalHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0":
		return true
	}
	return strings.HasSuffix(host, ".localhost")
}
