package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frida-mgr/versions/internal/core"
)

type fakeFeeds struct {
	releases map[string][]core.Release
	err      error
}

func (f *fakeFeeds) Releases(ctx context.Context, owner, repo string, includePrerelease bool) ([]core.Release, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.releases[owner+"/"+repo], nil
}

type fakeRegistry struct {
	releases map[string][]core.Release
	requires map[string][]string
	missing  map[string]bool
	probeErr error

	probes int
	listed []string
}

func (f *fakeRegistry) ListReleases(ctx context.Context, name string, includePrerelease bool) ([]core.Release, error) {
	f.listed = append(f.listed, name)
	releases, ok := f.releases[name]
	if !ok {
		return nil, &core.NotFoundError{Package: name}
	}
	return releases, nil
}

func (f *fakeRegistry) RequiresDist(ctx context.Context, name, version string) ([]string, error) {
	requires, ok := f.requires[version]
	if !ok {
		return nil, &core.NotFoundError{Package: name, Version: version}
	}
	return requires, nil
}

func (f *fakeRegistry) VersionExists(ctx context.Context, name, version string) (bool, error) {
	f.probes++
	if f.probeErr != nil {
		return false, f.probeErr
	}
	return !f.missing[version], nil
}

func mustRelease(t *testing.T, version, published string) core.Release {
	t.Helper()
	v, err := semver.StrictNewVersion(version)
	require.NoError(t, err)
	ts, err := time.Parse(time.RFC3339, published)
	require.NoError(t, err)
	return core.Release{Version: v, PublishedAt: ts.UTC()}
}

func testResolver(feeds *fakeFeeds, registry *fakeRegistry) *Resolver {
	r := New(feeds, registry, DefaultConfig(), nil)
	return r
}

func TestBuildMatchesToolsByProximityAndConstraint(t *testing.T) {
	feeds := &fakeFeeds{releases: map[string][]core.Release{
		"frida/frida": {
			mustRelease(t, "16.6.6", "2024-12-10T00:00:00Z"),
			mustRelease(t, "17.0.0", "2025-05-17T00:00:00Z"),
		},
		"sensepost/objection": {
			mustRelease(t, "1.11.0", "2024-12-01T00:00:00Z"),
		},
	}}
	registry := &fakeRegistry{
		releases: map[string][]core.Release{
			"frida-tools": {
				mustRelease(t, "13.3.0", "2024-12-11T00:00:00Z"),
				mustRelease(t, "14.0.0", "2025-05-18T00:00:00Z"),
			},
		},
		requires: map[string][]string{
			"13.3.0": {"frida>=16.2.2", "frida<17.0.0"},
			"14.0.0": {"frida>=17.0.0", "frida<18.0.0"},
		},
	}

	m, err := testResolver(feeds, registry).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Mappings, 2)

	assert.Equal(t, "13.3.0", m.Mappings["16.6.6"].Tools)
	assert.Equal(t, "14.0.0", m.Mappings["17.0.0"].Tools)
	assert.Equal(t, "2024-12-10", m.Mappings["16.6.6"].Released)
	assert.Equal(t, "1.11.0", m.Mappings["16.6.6"].Objection)
}

func TestBuildSkipsToolsOutsideLookaheadWindow(t *testing.T) {
	// The only admitting tools release shipped before the anchor, and
	// a non-admitting one shipped months later. The earlier one wins.
	feeds := &fakeFeeds{releases: map[string][]core.Release{
		"frida/frida": {
			mustRelease(t, "16.6.6", "2024-12-10T00:00:00Z"),
		},
	}}
	registry := &fakeRegistry{
		releases: map[string][]core.Release{
			"frida-tools": {
				mustRelease(t, "13.2.2", "2024-11-15T00:00:00Z"),
				mustRelease(t, "14.0.0", "2025-05-18T00:00:00Z"),
			},
		},
		requires: map[string][]string{
			"13.2.2": {"frida>=16.0.0", "frida<17.0.0"},
			"14.0.0": {"frida>=17.0.0"},
		},
	}

	m, err := testResolver(feeds, registry).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "13.2.2", m.Mappings["16.6.6"].Tools)
}

func TestBuildFallsBackToNearestWhenNothingAdmits(t *testing.T) {
	feeds := &fakeFeeds{releases: map[string][]core.Release{
		"frida/frida": {
			mustRelease(t, "16.6.6", "2024-12-10T00:00:00Z"),
		},
	}}
	registry := &fakeRegistry{
		releases: map[string][]core.Release{
			"frida-tools": {
				mustRelease(t, "13.0.0", "2024-10-01T00:00:00Z"),
				mustRelease(t, "13.1.0", "2024-12-09T00:00:00Z"),
			},
		},
		requires: map[string][]string{
			"13.0.0": {"frida>=15.0.0", "frida<16.0.0"},
			"13.1.0": {"frida>=15.0.0", "frida<16.0.0"},
		},
	}

	m, err := testResolver(feeds, registry).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "13.1.0", m.Mappings["16.6.6"].Tools)
}

func TestBuildTreatsMissingMetadataAsCompatible(t *testing.T) {
	feeds := &fakeFeeds{releases: map[string][]core.Release{
		"frida/frida": {
			mustRelease(t, "16.6.6", "2024-12-10T00:00:00Z"),
		},
	}}
	registry := &fakeRegistry{
		releases: map[string][]core.Release{
			"frida-tools": {
				mustRelease(t, "13.3.0", "2024-12-11T00:00:00Z"),
			},
		},
		requires: map[string][]string{},
	}

	m, err := testResolver(feeds, registry).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "13.3.0", m.Mappings["16.6.6"].Tools)
}

func TestBuildSkipsNonexistentObjectionVersions(t *testing.T) {
	feeds := &fakeFeeds{releases: map[string][]core.Release{
		"frida/frida": {
			mustRelease(t, "16.6.6", "2024-12-10T00:00:00Z"),
		},
		"sensepost/objection": {
			mustRelease(t, "1.10.0", "2024-11-01T00:00:00Z"),
			mustRelease(t, "1.11.0", "2024-12-12T00:00:00Z"),
			mustRelease(t, "1.12.0", "2025-01-05T00:00:00Z"),
		},
	}}
	registry := &fakeRegistry{
		releases: map[string][]core.Release{
			"frida-tools": {
				mustRelease(t, "13.3.0", "2024-12-11T00:00:00Z"),
			},
		},
		requires: map[string][]string{},
		missing:  map[string]bool{"1.11.0": true},
	}

	m, err := testResolver(feeds, registry).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.12.0", m.Mappings["16.6.6"].Objection)
}

func TestBuildAcceptsObjectionWhenProbesFail(t *testing.T) {
	feeds := &fakeFeeds{releases: map[string][]core.Release{
		"frida/frida": {
			mustRelease(t, "16.6.6", "2024-12-10T00:00:00Z"),
		},
		"sensepost/objection": {
			mustRelease(t, "1.11.0", "2024-12-12T00:00:00Z"),
		},
	}}
	registry := &fakeRegistry{
		releases: map[string][]core.Release{
			"frida-tools": {
				mustRelease(t, "13.3.0", "2024-12-11T00:00:00Z"),
			},
		},
		requires: map[string][]string{},
		probeErr: errors.New("upstream down"),
	}

	m, err := testResolver(feeds, registry).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.11.0", m.Mappings["16.6.6"].Objection)
}

func TestBuildSourcesObjectionFromFeed(t *testing.T) {
	// The registry also lists an objection history with different
	// versions; only the repository feed's timeline may be used, with
	// the registry limited to existence probes.
	feeds := &fakeFeeds{releases: map[string][]core.Release{
		"frida/frida": {
			mustRelease(t, "16.6.6", "2024-12-10T00:00:00Z"),
		},
		"sensepost/objection": {
			mustRelease(t, "1.11.0", "2024-12-12T00:00:00Z"),
		},
	}}
	registry := &fakeRegistry{
		releases: map[string][]core.Release{
			"frida-tools": {
				mustRelease(t, "13.3.0", "2024-12-11T00:00:00Z"),
			},
			"objection": {
				mustRelease(t, "9.9.9", "2024-12-12T00:00:00Z"),
			},
		},
		requires: map[string][]string{},
	}

	m, err := testResolver(feeds, registry).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.11.0", m.Mappings["16.6.6"].Objection)
	assert.NotContains(t, registry.listed, "objection")
}

func TestBuildFailsOnEmptyResult(t *testing.T) {
	feeds := &fakeFeeds{releases: map[string][]core.Release{}}
	registry := &fakeRegistry{
		releases: map[string][]core.Release{
			"frida-tools": {},
		},
	}

	_, err := testResolver(feeds, registry).Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyResult)
}

func TestBuildDerivesAliases(t *testing.T) {
	feeds := &fakeFeeds{releases: map[string][]core.Release{
		"frida/frida": {
			mustRelease(t, "15.2.2", "2023-12-20T00:00:00Z"),
			mustRelease(t, "16.6.6", "2024-12-10T00:00:00Z"),
		},
	}}
	registry := &fakeRegistry{
		releases: map[string][]core.Release{
			"frida-tools": {
				mustRelease(t, "12.0.4", "2023-12-21T00:00:00Z"),
				mustRelease(t, "13.3.0", "2024-12-11T00:00:00Z"),
			},
		},
		requires: map[string][]string{},
	}

	m, err := testResolver(feeds, registry).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "16.6.6", m.Aliases["latest"])
	assert.Equal(t, "16.6.6", m.Aliases["stable"])
	assert.Equal(t, "15.2.2", m.Aliases["lts"])
}

func TestBuildCachesExistenceProbes(t *testing.T) {
	feeds := &fakeFeeds{releases: map[string][]core.Release{
		"frida/frida": {
			mustRelease(t, "16.6.5", "2024-12-09T00:00:00Z"),
			mustRelease(t, "16.6.6", "2024-12-10T00:00:00Z"),
		},
		"sensepost/objection": {
			mustRelease(t, "1.11.0", "2024-12-12T00:00:00Z"),
		},
	}}
	registry := &fakeRegistry{
		releases: map[string][]core.Release{
			"frida-tools": {
				mustRelease(t, "13.3.0", "2024-12-11T00:00:00Z"),
			},
		},
		requires: map[string][]string{},
	}

	_, err := testResolver(feeds, registry).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, registry.probes)
}

func TestNearestByDate(t *testing.T) {
	releases := []core.Release{
		mustRelease(t, "1.0.0", "2024-01-01T00:00:00Z"),
		mustRelease(t, "1.1.0", "2024-01-11T00:00:00Z"),
	}

	at := func(s string) time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		return ts
	}

	assert.Equal(t, "1.0.0", nearestByDate(releases, at("2024-01-03T00:00:00Z")).Version.String())
	assert.Equal(t, "1.1.0", nearestByDate(releases, at("2024-01-09T00:00:00Z")).Version.String())
	// An exact midpoint prefers the later release.
	assert.Equal(t, "1.1.0", nearestByDate(releases, at("2024-01-06T00:00:00Z")).Version.String())
	assert.Equal(t, "1.0.0", nearestByDate(releases, at("2023-12-01T00:00:00Z")).Version.String())
	assert.Equal(t, "1.1.0", nearestByDate(releases, at("2024-02-01T00:00:00Z")).Version.String())
}
