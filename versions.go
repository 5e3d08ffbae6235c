// Package versions resolves compatible version combinations for the
// frida instrumentation toolchain.
//
// The frida python bindings, the frida-tools CLI and objection ship on
// independent release cadences with only partially declared
// compatibility constraints. This package discovers the release
// histories of all three, computes which frida-tools and objection
// versions pair with each frida release, and persists the result as an
// alias-aware version map with a user-correctable override store.
//
// Most callers use the root facade:
//
//	m, err := versions.LoadOrInitMap(path)
//	tools, ok := m.ResolveTools("latest")
//
// and refresh the map from the live sources with Refresh.
package versions

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/frida-mgr/versions/client"
	"github.com/frida-mgr/versions/internal/core"
	"github.com/frida-mgr/versions/internal/feed"
	"github.com/frida-mgr/versions/internal/overrides"
	"github.com/frida-mgr/versions/internal/pypi"
	"github.com/frida-mgr/versions/internal/resolve"
	"github.com/frida-mgr/versions/internal/vmap"
)

// Release is one published version with its publish time.
type Release = core.Release

// Map is the persisted compatibility map.
type Map = vmap.Map

// VersionInfo is the companion tooling matched to one anchor release.
type VersionInfo = vmap.VersionInfo

// Metadata records where a map came from and when.
type Metadata = vmap.Metadata

// ToolsResolution is a tools lookup result with provenance.
type ToolsResolution = vmap.ToolsResolution

// ObjectionResolution is an objection lookup result with provenance.
type ObjectionResolution = vmap.ObjectionResolution

// Overrides is the persisted pin override store.
type Overrides = overrides.Store

// Client is the retrying HTTP client used against the live sources.
type Client = client.Client

// Getter is the transport capability consumed by Refresh.
type Getter = client.Getter

// Config names the anchor project and its companion packages.
type Config = resolve.Config

// HTTPError is a non-success HTTP response.
type HTTPError = client.HTTPError

// RateLimitError reports exhausted retries against a rate limiting
// upstream.
type RateLimitError = client.RateLimitError

// NotFoundError reports a package or version missing upstream.
type NotFoundError = core.NotFoundError

// VersionFormatError reports a token that does not parse as a version.
type VersionFormatError = core.VersionFormatError

// ErrNotFound matches any not-found condition via errors.Is.
var ErrNotFound = client.ErrNotFound

// ErrEmptyResult reports a refresh that produced zero mappings.
var ErrEmptyResult = core.ErrEmptyResult

// DefaultClient returns the default retrying HTTP client.
func DefaultClient() *Client {
	return client.Default()
}

// DefaultConfig returns the frida toolchain configuration.
func DefaultConfig() Config {
	return resolve.DefaultConfig()
}

// Builtin returns the compiled-in seed map.
func Builtin() *Map {
	return vmap.Builtin()
}

// LoadMap reads a version map from a TOML file.
func LoadMap(path string) (*Map, error) {
	return vmap.Load(path)
}

// LoadOrInitMap reads a version map, falling back to the builtin seed
// when the file does not exist yet.
func LoadOrInitMap(path string) (*Map, error) {
	return vmap.LoadOrInit(path)
}

// LoadOverrides reads the override store, returning an empty store
// when the file does not exist yet.
func LoadOverrides(path string) (*Overrides, error) {
	return overrides.LoadOrDefault(path)
}

// Refresh rebuilds the compatibility map from the live sources over
// the given transport.
func Refresh(ctx context.Context, g Getter, cfg Config) (*Map, error) {
	feeds := feed.New(g)
	registry := pypi.New("", g)
	return resolve.New(feeds, registry, cfg, nil).Build(ctx)
}

// ValidatePin checks that a pin token is either a known alias in the
// map or a well-formed version, returning the resolved version string.
func ValidatePin(m *Map, token string) (string, error) {
	resolved := m.ResolveAlias(token)
	if _, err := semver.StrictNewVersion(resolved); err != nil {
		return "", &VersionFormatError{Input: token}
	}
	return resolved, nil
}
