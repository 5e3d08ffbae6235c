// Package feed retrieves and normalizes a repository's release history
// from its Atom feed and its paginated release listing page.
//
// The Atom feed is cheap (one request) but only carries the most recent
// entries; the listing pages carry the full history but require polite
// pagination. Both sources are merged and deduplicated by version. When
// the listing fails but the feed already produced entries, the partial
// feed result is returned instead of an error.
package feed

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/frida-mgr/versions/client"
	"github.com/frida-mgr/versions/internal/core"
)

const (
	defaultBaseURL  = "https://github.com"
	defaultMaxPages = 1000
	defaultDelay    = 350 * time.Millisecond
)

// Fetcher retrieves release histories from a GitHub-style host.
type Fetcher struct {
	client    client.Getter
	baseURL   string
	log       *log.Logger
	pageDelay time.Duration
	maxPages  int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBaseURL points the fetcher at a different host.
func WithBaseURL(u string) Option {
	return func(f *Fetcher) {
		f.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) {
		f.log = l
	}
}

// WithPageDelay sets the politeness delay between listing pages.
func WithPageDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.pageDelay = d
	}
}

// WithMaxPages caps how many listing pages are followed.
func WithMaxPages(n int) Option {
	return func(f *Fetcher) {
		f.maxPages = n
	}
}

// New creates a Fetcher.
func New(c client.Getter, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    c,
		baseURL:   defaultBaseURL,
		log:       log.Default(),
		pageDelay: defaultDelay,
		maxPages:  defaultMaxPages,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Releases returns the deduplicated release history of owner/repo,
// ascending by publish time.
func (f *Fetcher) Releases(ctx context.Context, owner, repo string, includePrerelease bool) ([]core.Release, error) {
	var all []core.Release

	atom, atomErr := f.atomReleases(ctx, owner, repo, includePrerelease)
	if atomErr == nil {
		all = append(all, atom...)
	}

	listing, listingErr := f.listingReleases(ctx, owner, repo, includePrerelease)
	if listingErr != nil {
		if len(all) > 0 {
			// One source failing is not fatal while the other produced data.
			f.log.Warn("release listing unavailable, using feed entries only",
				"repo", owner+"/"+repo, "err", listingErr)
			return dedup(all), nil
		}
		if atomErr != nil {
			return nil, fmt.Errorf("fetching releases for %s/%s: %w", owner, repo, listingErr)
		}
		return nil, listingErr
	}
	all = append(all, listing...)

	return dedup(all), nil
}

// dedup collapses duplicate versions keeping the later publish time,
// then orders the result ascending by publish time.
func dedup(releases []core.Release) []core.Release {
	sort.Slice(releases, func(i, j int) bool {
		if c := releases[i].Version.Compare(releases[j].Version); c != 0 {
			return c < 0
		}
		return releases[i].PublishedAt.Before(releases[j].PublishedAt)
	})

	out := make([]core.Release, 0, len(releases))
	for _, r := range releases {
		if n := len(out); n > 0 && out[n-1].Version.Equal(r.Version) {
			if r.PublishedAt.After(out[n-1].PublishedAt) {
				out[n-1] = r
			}
			continue
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].PublishedAt.Before(out[j].PublishedAt)
	})
	return out
}

func looksLikeHTML(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "<!DOCTYPE html") ||
		strings.HasPrefix(s, "<html") ||
		strings.Contains(s, "<html") ||
		strings.Contains(s, "</html>")
}
