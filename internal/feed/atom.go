package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/frida-mgr/versions/internal/core"
)

func (f *Fetcher) atomReleases(ctx context.Context, owner, repo string, includePrerelease bool) ([]core.Release, error) {
	url := fmt.Sprintf("%s/%s/%s/releases.atom", f.baseURL, owner, repo)
	doc, err := f.client.GetText(ctx, url)
	if err != nil {
		return nil, err
	}
	// Some environments answer the feed URL with an HTML error page.
	if looksLikeHTML(doc) {
		return nil, fmt.Errorf("expected Atom XML from %s, got HTML", url)
	}
	return parseAtom(doc, includePrerelease)
}

// parseAtom walks the feed's token stream and collects one release per
// entry. The release tag is taken from the entry's /tag/ link when
// present, otherwise from the first semantic-version token in the
// title.
func parseAtom(doc string, includePrerelease bool) ([]core.Release, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))

	var (
		releases    []core.Release
		inEntry     bool
		field       string
		title       strings.Builder
		published   strings.Builder
		updated     strings.Builder
		tagFromLink string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing Atom feed: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "entry":
				inEntry = true
				field = ""
				title.Reset()
				published.Reset()
				updated.Reset()
				tagFromLink = ""
			case "title", "published", "updated":
				if inEntry {
					field = t.Name.Local
				}
			case "link":
				if !inEntry {
					continue
				}
				// The release URL is a more stable tag source than the title.
				for _, attr := range t.Attr {
					if attr.Name.Local != "href" {
						continue
					}
					if i := strings.LastIndex(attr.Value, "/tag/"); i >= 0 {
						tagFromLink = attr.Value[i+len("/tag/"):]
					}
				}
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "title", "published", "updated":
				field = ""
			case "entry":
				inEntry = false
				r, ok := entryRelease(title.String(), published.String(), updated.String(), tagFromLink, includePrerelease)
				if ok {
					releases = append(releases, r)
				}
			}

		case xml.CharData:
			if !inEntry {
				continue
			}
			switch field {
			case "title":
				title.Write(t)
			case "published":
				published.Write(t)
			case "updated":
				updated.Write(t)
			}
		}
	}

	return dedup(releases), nil
}

func entryRelease(title, published, updated, tagFromLink string, includePrerelease bool) (core.Release, bool) {
	lower := strings.ToLower(title)
	if !includePrerelease && (strings.Contains(lower, "pre-release") || strings.Contains(lower, "prerelease")) {
		return core.Release{}, false
	}

	ts := strings.TrimSpace(published)
	if ts == "" {
		ts = strings.TrimSpace(updated)
	}
	publishedAt, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return core.Release{}, false
	}

	tag := strings.TrimSpace(tagFromLink)
	if tag == "" {
		tag = tagFromTitle(title)
	}
	if tag == "" {
		return core.Release{}, false
	}

	v, err := semver.StrictNewVersion(strings.TrimPrefix(tag, "v"))
	if err != nil {
		return core.Release{}, false
	}
	if !includePrerelease && v.Prerelease() != "" {
		return core.Release{}, false
	}

	return core.Release{Version: v, PublishedAt: publishedAt.UTC()}, true
}

// tagFromTitle extracts a release tag from titles like "Release 16.6.6",
// "Frida 17.5.2" or "14.5.0: Require Frida >= 17.5.0".
func tagFromTitle(title string) string {
	title = strings.TrimSpace(title)

	for _, prefix := range []string{"Release ", "release ", "Pre-release ", "pre-release "} {
		if rest, ok := strings.CutPrefix(title, prefix); ok {
			return strings.TrimSpace(rest)
		}
	}

	for _, token := range strings.Fields(title) {
		token = strings.TrimRightFunc(token, func(r rune) bool {
			return !isVersionRune(r)
		})
		token = strings.TrimPrefix(token, "v")
		if _, err := semver.StrictNewVersion(token); err == nil {
			return token
		}
	}
	return ""
}

func isVersionRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r == '.', r == '-', r == '+':
		return true
	}
	return false
}
