// Package pypi is a client for the PyPI JSON API.
//
// It serves release histories with upload timestamps, per-version
// dependency metadata and cheap existence probes for the resolver.
package pypi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/frida-mgr/versions/client"
	"github.com/frida-mgr/versions/internal/core"
)

const defaultBaseURL = "https://pypi.org"

// Client accesses the PyPI JSON API.
type Client struct {
	baseURL string
	http    client.Getter
	urls    *URLs
}

// New creates a PyPI client. An empty baseURL selects pypi.org; a nil
// Getter selects the default transport.
func New(baseURL string, c client.Getter) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if c == nil {
		c = client.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    c,
		urls:    NewURLs(baseURL),
	}
}

// URLs returns the URL builder bound to this client's host.
func (c *Client) URLs() *URLs {
	return c.urls
}

type indexResponse struct {
	Releases map[string][]releaseFile `json:"releases"`
}

type releaseFile struct {
	UploadTimeISO8601 string `json:"upload_time_iso_8601"`
	UploadTime        string `json:"upload_time"`
	Yanked            bool   `json:"yanked"`
}

type versionResponse struct {
	Info versionInfo `json:"info"`
}

type versionInfo struct {
	RequiresPython string   `json:"requires_python"`
	RequiresDist   []string `json:"requires_dist"`
}

// ListReleases returns the package's release history ascending by
// upload time. A release's timestamp is the earliest upload time among
// its non-yanked files; releases with only yanked files or no parseable
// timestamp are skipped, and prereleases are dropped unless requested.
func (c *Client) ListReleases(ctx context.Context, name string, includePrerelease bool) ([]core.Release, error) {
	url := fmt.Sprintf("%s/pypi/%s/json", c.baseURL, normalizeName(name))

	var index indexResponse
	if err := c.http.GetJSON(ctx, url, &index); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, &core.NotFoundError{Package: name}
		}
		return nil, err
	}

	releases := make([]core.Release, 0, len(index.Releases))
	for version, files := range index.Releases {
		v, err := semver.StrictNewVersion(version)
		if err != nil {
			continue
		}
		if !includePrerelease && v.Prerelease() != "" {
			continue
		}

		var earliest time.Time
		for _, f := range files {
			if f.Yanked {
				continue
			}
			t, ok := parseUploadTime(f)
			if !ok {
				continue
			}
			if earliest.IsZero() || t.Before(earliest) {
				earliest = t
			}
		}
		if earliest.IsZero() {
			continue
		}

		releases = append(releases, core.Release{Version: v, PublishedAt: earliest})
	}

	sort.Slice(releases, func(i, j int) bool {
		return releases[i].PublishedAt.Before(releases[j].PublishedAt)
	})
	return releases, nil
}

func parseUploadTime(f releaseFile) (time.Time, bool) {
	for _, raw := range []string{f.UploadTimeISO8601, f.UploadTime} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC(), true
		}
		if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// RequiresDist returns the declared dependency specifiers of a
// released version.
func (c *Client) RequiresDist(ctx context.Context, name, version string) ([]string, error) {
	info, err := c.versionInfo(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return info.RequiresDist, nil
}

// RequiresPython returns the version's requires-python specifier, or
// an empty string when the release declares none.
func (c *Client) RequiresPython(ctx context.Context, name, version string) (string, error) {
	info, err := c.versionInfo(ctx, name, version)
	if err != nil {
		return "", err
	}
	return info.RequiresPython, nil
}

func (c *Client) versionInfo(ctx context.Context, name, version string) (*versionInfo, error) {
	url := fmt.Sprintf("%s/pypi/%s/%s/json", c.baseURL, normalizeName(name), version)

	var resp versionResponse
	if err := c.http.GetJSON(ctx, url, &resp); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, &core.NotFoundError{Package: name, Version: version}
		}
		return nil, err
	}
	return &resp.Info, nil
}

// VersionExists probes whether a released version exists without
// downloading its metadata.
func (c *Client) VersionExists(ctx context.Context, name, version string) (bool, error) {
	url := fmt.Sprintf("%s/pypi/%s/%s/json", c.baseURL, normalizeName(name), version)
	return c.http.Exists(ctx, url)
}

// SelectFirstCompatibleOnOrAfter walks a package's release history
// around a reference time and returns the first release whose
// requires-python admits the given interpreter version. The forward
// direction is tried first, then backward from the reference.
func (c *Client) SelectFirstCompatibleOnOrAfter(ctx context.Context, name string, after time.Time, pythonVersion string) (*core.Release, error) {
	releases, err := c.ListReleases(ctx, name, false)
	if err != nil {
		return nil, err
	}
	if len(releases) == 0 {
		return nil, &core.NotFoundError{Package: name}
	}

	start := sort.Search(len(releases), func(i int) bool {
		return !releases[i].PublishedAt.Before(after)
	})

	const scanLimit = 50
	for i := start; i < len(releases) && i < start+scanLimit; i++ {
		if c.pythonCompatible(ctx, name, releases[i], pythonVersion) {
			r := releases[i]
			return &r, nil
		}
	}
	for i := start - 1; i >= 0 && i >= start-scanLimit; i-- {
		if c.pythonCompatible(ctx, name, releases[i], pythonVersion) {
			r := releases[i]
			return &r, nil
		}
	}

	return nil, &core.NotFoundError{Package: name}
}

func (c *Client) pythonCompatible(ctx context.Context, name string, r core.Release, pythonVersion string) bool {
	spec, err := c.RequiresPython(ctx, name, r.Version.String())
	if err != nil {
		// Unknown metadata is not a rejection.
		return true
	}
	return PythonSatisfies(spec, pythonVersion)
}
