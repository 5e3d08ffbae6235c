// Package overrides persists user and self-healed pin corrections that
// take precedence over the computed compatibility map.
package overrides

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Store holds pin overrides. Tools overrides key on the anchor
// version; objection overrides key on anchor plus the Python
// major.minor series, since objection availability depends on both.
type Store struct {
	FridaTools map[string]string `toml:"frida_tools"`
	Objection  map[string]string `toml:"objection"`
}

// New returns an empty store.
func New() *Store {
	return &Store{
		FridaTools: make(map[string]string),
		Objection:  make(map[string]string),
	}
}

// LoadOrDefault reads a store from path. A missing file yields an
// empty store rather than an error.
func LoadOrDefault(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	var s Store
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if s.FridaTools == nil {
		s.FridaTools = make(map[string]string)
	}
	if s.Objection == nil {
		s.Objection = make(map[string]string)
	}
	return &s, nil
}

// Save writes the store atomically.
func (s *Store) Save(path string) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding overrides: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".overrides-*")
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

// PythonMajorMinor reduces an interpreter version like "3.11.9" to its
// "3.11" series. Inputs without two leading numeric components return
// empty.
func PythonMajorMinor(version string) string {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) < 2 {
		return ""
	}
	for _, p := range parts[:2] {
		if p == "" {
			return ""
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return ""
			}
		}
	}
	return parts[0] + "." + parts[1]
}

// objectionKey builds the composite key for objection overrides. An
// unknown interpreter series still gets a stable key.
func objectionKey(fridaVersion, pythonVersion string) string {
	series := PythonMajorMinor(pythonVersion)
	if series == "" {
		series = "unknown"
	}
	return fridaVersion + "@" + series
}

// Tools returns the tools override for an anchor version.
func (s *Store) Tools(fridaVersion string) (string, bool) {
	v, ok := s.FridaTools[fridaVersion]
	return v, ok
}

// ObjectionFor returns the objection override for an anchor version
// under a given Python interpreter.
func (s *Store) ObjectionFor(fridaVersion, pythonVersion string) (string, bool) {
	v, ok := s.Objection[objectionKey(fridaVersion, pythonVersion)]
	return v, ok
}

// SetTools records a tools override, reporting whether the store
// changed.
func (s *Store) SetTools(fridaVersion, toolsVersion string) bool {
	if s.FridaTools == nil {
		s.FridaTools = make(map[string]string)
	}
	if cur, ok := s.FridaTools[fridaVersion]; ok && cur == toolsVersion {
		return false
	}
	s.FridaTools[fridaVersion] = toolsVersion
	return true
}

// SetObjection records an objection override, reporting whether the
// store changed.
func (s *Store) SetObjection(fridaVersion, pythonVersion, objectionVersion string) bool {
	if s.Objection == nil {
		s.Objection = make(map[string]string)
	}
	key := objectionKey(fridaVersion, pythonVersion)
	if cur, ok := s.Objection[key]; ok && cur == objectionVersion {
		return false
	}
	s.Objection[key] = objectionVersion
	return true
}
