// Package vmap holds the persisted compatibility map between anchor
// releases and their matched companion tool versions, plus the alias
// table pointing at notable anchor versions.
package vmap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"

	"github.com/frida-mgr/versions/internal/core"
)

// VersionInfo is the companion tooling matched to one anchor release.
type VersionInfo struct {
	Tools     string `toml:"tools"`
	Objection string `toml:"objection,omitempty"`
	Released  string `toml:"released"`
}

// Metadata records where a map came from and when.
type Metadata struct {
	LastUpdated string `toml:"last_updated"`
	Source      string `toml:"source"`
}

// Map is the alias-aware compatibility map.
type Map struct {
	Mappings map[string]VersionInfo `toml:"mappings"`
	Aliases  map[string]string      `toml:"aliases"`
	Metadata Metadata               `toml:"metadata"`
}

// ToolsResolution is a tools lookup result with its provenance.
type ToolsResolution struct {
	Version    string
	MappedFrom string
}

// ObjectionResolution is an objection lookup result with its
// provenance.
type ObjectionResolution struct {
	Version    string
	MappedFrom string
}

// Builtin returns the compiled-in seed map used before the first
// successful refresh.
func Builtin() *Map {
	return &Map{
		Mappings: map[string]VersionInfo{
			"16.6.6":  {Tools: "13.3.0", Released: "2024-12-10"},
			"16.5.2":  {Tools: "13.2.2", Released: "2024-11-15"},
			"16.4.0":  {Tools: "13.1.0", Released: "2024-10-01"},
			"16.1.4":  {Tools: "12.2.1", Released: "2024-06-15"},
			"16.0.19": {Tools: "12.1.3", Released: "2024-05-01"},
			"15.2.2":  {Tools: "12.0.4", Released: "2023-12-20"},
			"15.1.17": {Tools: "11.0.2", Released: "2023-10-15"},
		},
		Aliases: map[string]string{
			"latest": "16.6.6",
			"stable": "16.4.0",
			"lts":    "15.2.2",
		},
		Metadata: Metadata{
			LastUpdated: "2025-01-15",
			Source:      "https://github.com/frida/frida/releases",
		},
	}
}

// Load reads a map from a TOML file.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Map
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &m, nil
}

// LoadOrInit reads a map from path, materializing the builtin seed as
// the file when it does not exist yet so later runs are file backed.
func LoadOrInit(path string) (*Map, error) {
	m, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		seed := Builtin()
		if err := seed.Save(path); err != nil {
			return nil, err
		}
		return seed, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes the map atomically. A map with no mappings is refused so
// a failed refresh can never clobber a good file.
func (m *Map) Save(path string) error {
	if len(m.Mappings) == 0 {
		return fmt.Errorf("refusing to save %s: %w", path, core.ErrEmptyResult)
	}

	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding version map: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".vmap-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ResolveAlias maps an alias to its anchor version. Tokens that are
// not aliases pass through unchanged.
func (m *Map) ResolveAlias(token string) string {
	if v, ok := m.Aliases[token]; ok {
		return v
	}
	return token
}

// ToolsVersion returns the matched tools version for an anchor version
// or alias.
func (m *Map) ToolsVersion(token string) (string, bool) {
	info, ok := m.Mappings[m.ResolveAlias(token)]
	if !ok || info.Tools == "" {
		return "", false
	}
	return info.Tools, true
}

// ObjectionVersion returns the matched objection version for an anchor
// version or alias.
func (m *Map) ObjectionVersion(token string) (string, bool) {
	info, ok := m.Mappings[m.ResolveAlias(token)]
	if !ok || info.Objection == "" {
		return "", false
	}
	return info.Objection, true
}

// ResolveTools is ToolsVersion with provenance: MappedFrom carries the
// anchor version the result was recorded under.
func (m *Map) ResolveTools(token string) (*ToolsResolution, bool) {
	anchor := m.ResolveAlias(token)
	info, ok := m.Mappings[anchor]
	if !ok || info.Tools == "" {
		return nil, false
	}
	return &ToolsResolution{Version: info.Tools, MappedFrom: anchor}, true
}

// ResolveObjection is ObjectionVersion with provenance.
func (m *Map) ResolveObjection(token string) (*ObjectionResolution, bool) {
	anchor := m.ResolveAlias(token)
	info, ok := m.Mappings[anchor]
	if !ok || info.Objection == "" {
		return nil, false
	}
	return &ObjectionResolution{Version: info.Objection, MappedFrom: anchor}, true
}

// Versions lists the mapped anchor versions, descending. Versions that
// parse as semver come first in semantic order; the rest follow in
// descending lexical order.
func (m *Map) Versions() []string {
	var parsed semver.Collection
	byVersion := make(map[string]string, len(m.Mappings))
	var unparseable []string

	for raw := range m.Mappings {
		v, err := semver.StrictNewVersion(raw)
		if err != nil {
			unparseable = append(unparseable, raw)
			continue
		}
		parsed = append(parsed, v)
		byVersion[v.String()] = raw
	}

	sort.Sort(sort.Reverse(parsed))
	sort.Sort(sort.Reverse(sort.StringSlice(unparseable)))

	out := make([]string, 0, len(m.Mappings))
	for _, v := range parsed {
		out = append(out, byVersion[v.String()])
	}
	return append(out, unparseable...)
}

// BuildDefaultAliases derives the alias table from the mappings:
// latest and stable point at the highest version, lts at the highest
// version of the previous major series when one exists.
func (m *Map) BuildDefaultAliases() {
	versions := make(semver.Collection, 0, len(m.Mappings))
	for raw := range m.Mappings {
		if v, err := semver.StrictNewVersion(raw); err == nil {
			versions = append(versions, v)
		}
	}
	if len(versions) == 0 {
		return
	}
	sort.Sort(sort.Reverse(versions))

	latest := versions[0]
	m.Aliases = map[string]string{
		"latest": latest.String(),
		"stable": latest.String(),
	}
	if latest.Major() == 0 {
		return
	}
	for _, v := range versions[1:] {
		if v.Major() == latest.Major()-1 {
			m.Aliases["lts"] = v.String()
			return
		}
	}
}
