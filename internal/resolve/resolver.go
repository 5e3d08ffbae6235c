// Package resolve computes the compatibility map between anchor
// releases and their companion tool versions.
//
// For each anchor release the resolver picks a tools release by
// publish-time proximity, gated by the tools release's declared anchor
// constraint, and an objection release by proximity gated by an
// existence probe on the registry.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/frida-mgr/versions/internal/core"
	"github.com/frida-mgr/versions/internal/vmap"
)

const (
	// toolsLookaheadDays bounds how far after an anchor release a
	// matching tools release may have shipped.
	toolsLookaheadDays = 21

	// probeScanLimit bounds the existence probes spent per anchor when
	// matching objection releases.
	probeScanLimit = 30

	// sourcePause is the politeness pause between upstream source
	// groups during a full rebuild.
	sourcePause = 200 * time.Millisecond
)

// ReleaseSource serves release histories from a repository host.
type ReleaseSource interface {
	Releases(ctx context.Context, owner, repo string, includePrerelease bool) ([]core.Release, error)
}

// MetadataSource serves release histories and per-version metadata
// from a package registry.
type MetadataSource interface {
	ListReleases(ctx context.Context, name string, includePrerelease bool) ([]core.Release, error)
	RequiresDist(ctx context.Context, name, version string) ([]string, error)
	VersionExists(ctx context.Context, name, version string) (bool, error)
}

// Config names the anchor project and its companion packages.
type Config struct {
	AnchorOwner string
	AnchorRepo  string
	AnchorName  string

	ToolsPackage string
	ToolsOwner   string
	ToolsRepo    string

	ObjectionOwner   string
	ObjectionRepo    string
	ObjectionPackage string

	IncludePrerelease bool
}

// DefaultConfig returns the frida toolchain configuration.
func DefaultConfig() Config {
	return Config{
		AnchorOwner:      "frida",
		AnchorRepo:       "frida",
		AnchorName:       "frida",
		ToolsPackage:     "frida-tools",
		ToolsOwner:       "frida",
		ToolsRepo:        "frida-tools",
		ObjectionOwner:   "sensepost",
		ObjectionRepo:    "objection",
		ObjectionPackage: "objection",
	}
}

// Resolver builds compatibility maps.
type Resolver struct {
	feeds    ReleaseSource
	registry MetadataSource
	cfg      Config
	log      *log.Logger

	// Per-build caches. Metadata and existence answers are stable
	// within one rebuild and each upstream call is expensive.
	requiresCache map[string][]string
	requiresKnown map[string]bool
	existsCache   map[string]*bool
}

// New creates a Resolver.
func New(feeds ReleaseSource, registry MetadataSource, cfg Config, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		feeds:    feeds,
		registry: registry,
		cfg:      cfg,
		log:      logger,
	}
}

// Build computes a fresh compatibility map from the live sources. An
// empty result is an error so callers never persist a wiped map.
func (r *Resolver) Build(ctx context.Context) (*vmap.Map, error) {
	r.requiresCache = make(map[string][]string)
	r.requiresKnown = make(map[string]bool)
	r.existsCache = make(map[string]*bool)

	anchors, err := r.feeds.Releases(ctx, r.cfg.AnchorOwner, r.cfg.AnchorRepo, r.cfg.IncludePrerelease)
	if err != nil {
		return nil, fmt.Errorf("fetching %s releases: %w", r.cfg.AnchorRepo, err)
	}

	if err := pause(ctx, sourcePause); err != nil {
		return nil, err
	}

	tools, err := r.toolsReleases(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s releases: %w", r.cfg.ToolsPackage, err)
	}

	if err := pause(ctx, sourcePause); err != nil {
		return nil, err
	}

	objections, err := r.objectionReleases(ctx)
	if err != nil {
		r.log.Warn("objection history unavailable, mappings will omit objection",
			"err", err)
		objections = nil
	}

	mappings := make(map[string]vmap.VersionInfo, len(anchors))
	for _, anchor := range anchors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tr := r.compatibleToolsRelease(ctx, anchor, tools)
		if tr == nil {
			continue
		}

		info := vmap.VersionInfo{
			Tools:    tr.Version.String(),
			Released: anchor.PublishedAt.Format("2006-01-02"),
		}
		if or := r.objectionRelease(ctx, anchor, objections); or != nil {
			info.Objection = or.Version.String()
		}
		mappings[anchor.Version.String()] = info
	}

	if len(mappings) == 0 {
		return nil, fmt.Errorf("resolving %s toolchain: %w", r.cfg.AnchorName, core.ErrEmptyResult)
	}

	m := &vmap.Map{
		Mappings: mappings,
		Metadata: vmap.Metadata{
			LastUpdated: time.Now().UTC().Format("2006-01-02"),
			Source:      fmt.Sprintf("https://github.com/%s/%s/releases", r.cfg.AnchorOwner, r.cfg.AnchorRepo),
		},
	}
	m.BuildDefaultAliases()
	return m, nil
}

// toolsReleases prefers the registry history, which carries accurate
// upload timestamps, and falls back to the repository feed.
func (r *Resolver) toolsReleases(ctx context.Context) ([]core.Release, error) {
	releases, err := r.registry.ListReleases(ctx, r.cfg.ToolsPackage, r.cfg.IncludePrerelease)
	if err == nil && len(releases) > 0 {
		return releases, nil
	}
	if err != nil {
		r.log.Warn("registry history unavailable, falling back to repository feed",
			"package", r.cfg.ToolsPackage, "err", err)
	}
	return r.feeds.Releases(ctx, r.cfg.ToolsOwner, r.cfg.ToolsRepo, r.cfg.IncludePrerelease)
}

// objectionReleases comes from the repository feed. The registry is
// consulted per candidate for existence only, which is what gives the
// existence-gated scan something to filter.
func (r *Resolver) objectionReleases(ctx context.Context) ([]core.Release, error) {
	return r.feeds.Releases(ctx, r.cfg.ObjectionOwner, r.cfg.ObjectionRepo, r.cfg.IncludePrerelease)
}

// compatibleToolsRelease picks the tools release matched to an anchor
// release. Candidates published within the look-ahead window after the
// anchor are tried first in ascending order, then earlier candidates
// in descending order, each gated by the declared anchor constraint.
// When nothing admits the anchor the nearest release by publish time
// is used as a last resort.
func (r *Resolver) compatibleToolsRelease(ctx context.Context, anchor core.Release, tools []core.Release) *core.Release {
	if len(tools) == 0 {
		return nil
	}

	start := searchByDate(tools, anchor.PublishedAt)
	windowEnd := anchor.PublishedAt.AddDate(0, 0, toolsLookaheadDays)

	for i := start; i < len(tools); i++ {
		if tools[i].PublishedAt.After(windowEnd) {
			break
		}
		if r.toolsAdmits(ctx, tools[i], anchor) {
			return &tools[i]
		}
	}
	for i := start - 1; i >= 0; i-- {
		if r.toolsAdmits(ctx, tools[i], anchor) {
			return &tools[i]
		}
	}

	nearest := nearestByDate(tools, anchor.PublishedAt)
	r.log.Warn("no tools release admits anchor, using nearest by date",
		"anchor", anchor.Version.String(),
		"tools", nearest.Version.String())
	return nearest
}

// toolsAdmits checks whether a tools release's declared anchor
// constraint admits the anchor version. A release with no fetchable
// constraint is treated as compatible.
func (r *Resolver) toolsAdmits(ctx context.Context, tr core.Release, anchor core.Release) bool {
	version := tr.Version.String()

	if !r.requiresKnown[version] {
		requires, err := r.registry.RequiresDist(ctx, r.cfg.ToolsPackage, version)
		if err != nil {
			var nf *core.NotFoundError
			if !errors.As(err, &nf) && ctx.Err() == nil {
				r.log.Debug("dependency metadata unavailable",
					"package", r.cfg.ToolsPackage, "version", version, "err", err)
			}
			requires = nil
		}
		r.requiresCache[version] = requires
		r.requiresKnown[version] = true
	}

	requires := r.requiresCache[version]
	if len(requires) == 0 {
		return true
	}
	return ParseAnchorBounds(requires, r.cfg.AnchorName).Admits(anchor.Version)
}

// objectionRelease picks the objection release matched to an anchor,
// scanning a bounded number of candidates forward then backward from
// the anchor's publish time, keeping only candidates that exist on the
// registry. A probe failure counts as existing so a registry outage
// degrades to pure time proximity.
func (r *Resolver) objectionRelease(ctx context.Context, anchor core.Release, objections []core.Release) *core.Release {
	if len(objections) == 0 {
		return nil
	}

	start := searchByDate(objections, anchor.PublishedAt)

	for i := start; i < len(objections) && i < start+probeScanLimit; i++ {
		if r.objectionExists(ctx, objections[i]) {
			return &objections[i]
		}
	}
	for i := start - 1; i >= 0 && i >= start-probeScanLimit; i-- {
		if r.objectionExists(ctx, objections[i]) {
			return &objections[i]
		}
	}

	return nearestByDate(objections, anchor.PublishedAt)
}

func (r *Resolver) objectionExists(ctx context.Context, obj core.Release) bool {
	version := obj.Version.String()
	if cached, ok := r.existsCache[version]; ok {
		if cached == nil {
			return true
		}
		return *cached
	}

	exists, err := r.registry.VersionExists(ctx, r.cfg.ObjectionPackage, version)
	if err != nil {
		// Unknown is not a rejection.
		r.existsCache[version] = nil
		return true
	}
	r.existsCache[version] = &exists
	return exists
}

// searchByDate returns the index of the first release not published
// before t. Releases must be ascending by publish time.
func searchByDate(releases []core.Release, t time.Time) int {
	return sort.Search(len(releases), func(i int) bool {
		return !releases[i].PublishedAt.Before(t)
	})
}

// nearestByDate returns the release closest to t by publish time, the
// later one on a tie.
func nearestByDate(releases []core.Release, t time.Time) *core.Release {
	if len(releases) == 0 {
		return nil
	}
	i := searchByDate(releases, t)
	if i == 0 {
		return &releases[0]
	}
	if i == len(releases) {
		return &releases[len(releases)-1]
	}

	after := t.Sub(releases[i-1].PublishedAt)
	before := releases[i].PublishedAt.Sub(t)
	if before <= after {
		return &releases[i]
	}
	return &releases[i-1]
}

func pause(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
