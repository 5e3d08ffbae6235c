// Package core provides the shared release type and the error taxonomy
// used across the feed, registry and resolver packages.
package core

import (
	"time"

	"github.com/Masterminds/semver/v3"
)

// Release is a normalized (version, publish time) record from any
// source: the Atom feed, the release listing page or the registry
// index. Prerelease versions are excluded unless explicitly requested
// at fetch time.
type Release struct {
	Version     *semver.Version
	PublishedAt time.Time
}
