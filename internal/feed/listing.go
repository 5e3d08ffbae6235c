package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/net/html"

	"github.com/frida-mgr/versions/internal/core"
)

func (f *Fetcher) listingReleases(ctx context.Context, owner, repo string, includePrerelease bool) ([]core.Release, error) {
	var all []core.Release
	url := fmt.Sprintf("%s/%s/%s/releases", f.baseURL, owner, repo)

	for page := 0; page < f.maxPages; page++ {
		doc, err := f.client.GetText(ctx, url)
		if err != nil {
			return nil, err
		}

		releases, next := parseListing(doc, owner, repo, includePrerelease)
		// An empty page means the history is exhausted even when a
		// next link is still rendered.
		if len(releases) == 0 {
			break
		}
		all = append(all, releases...)

		if next == "" {
			break
		}
		next = f.normalizeHref(next)
		if next == url {
			break
		}
		url = next

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.pageDelay):
		}
	}

	return all, nil
}

// normalizeHref resolves a pagination href against the fetcher's base
// host. Absolute URLs on the same host pass through unchanged.
func (f *Fetcher) normalizeHref(href string) string {
	if strings.HasPrefix(href, f.baseURL) {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return f.baseURL + href
	}
	return href
}

// parseListing scans a releases page for release sections and the
// pagination link. Each release section carries a publish timestamp in
// a relative-time element and a tag link; both must be present and the
// tag must parse as a semantic version for the release to count.
func parseListing(doc, owner, repo string, includePrerelease bool) ([]core.Release, string) {
	var (
		releases []core.Release
		next     string

		pendingTime time.Time
		haveTime    bool
	)

	tagPrefixes := []string{
		"/" + owner + "/" + repo + "/releases/tag/",
		"/" + owner + "/" + repo + "/tree/",
	}

	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		tok := z.Token()
		switch tok.Data {
		case "relative-time", "local-time", "time":
			for _, attr := range tok.Attr {
				if attr.Key != "datetime" {
					continue
				}
				if t, err := time.Parse(time.RFC3339, attr.Val); err == nil {
					pendingTime = t.UTC()
					haveTime = true
				}
			}

		case "a":
			var href, rel string
			for _, attr := range tok.Attr {
				switch attr.Key {
				case "href":
					href = attr.Val
				case "rel":
					rel = attr.Val
				}
			}
			if rel == "next" && href != "" {
				next = href
				continue
			}
			tag := tagFromHref(href, tagPrefixes)
			if tag == "" || !haveTime {
				continue
			}
			v, err := semver.StrictNewVersion(strings.TrimPrefix(tag, "v"))
			if err != nil {
				continue
			}
			if !includePrerelease && v.Prerelease() != "" {
				continue
			}
			releases = append(releases, core.Release{Version: v, PublishedAt: pendingTime})
			haveTime = false

		case "link":
			var href, rel string
			for _, attr := range tok.Attr {
				switch attr.Key {
				case "href":
					href = attr.Val
				case "rel":
					rel = attr.Val
				}
			}
			if rel == "next" && href != "" {
				next = href
			}
		}
	}

	return releases, next
}

// tagFromHref pulls the release tag out of a tag or tree link, cutting
// the tag at the first URL delimiter.
func tagFromHref(href string, prefixes []string) string {
	for _, prefix := range prefixes {
		i := strings.Index(href, prefix)
		if i < 0 {
			continue
		}
		tag := href[i+len(prefix):]
		if j := strings.IndexAny(tag, "?#\"<> \t\r\n"); j >= 0 {
			tag = tag[:j]
		}
		if tag != "" {
			return tag
		}
	}
	return ""
}
