package pypi

import (
	"fmt"
	"strings"
)

// URLs builds browser and package URLs for PyPI projects.
type URLs struct {
	baseURL string
}

// NewURLs creates a URL builder. An empty baseURL selects pypi.org.
func NewURLs(baseURL string) *URLs {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &URLs{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Project returns the project's landing page.
func (u *URLs) Project(name string) string {
	return fmt.Sprintf("%s/project/%s/", u.baseURL, normalizeName(name))
}

// Release returns the landing page of one released version.
func (u *URLs) Release(name, version string) string {
	return fmt.Sprintf("%s/project/%s/%s/", u.baseURL, normalizeName(name), version)
}

// PURL returns the package URL identifier for a released version.
func (u *URLs) PURL(name, version string) string {
	s := "pkg:pypi/" + normalizeName(name)
	if version != "" {
		s += "@" + version
	}
	return s
}

// normalizeName lowercases a project name and collapses runs of ".",
// "-" and "_" into a single hyphen, per the PyPI naming rules.
func normalizeName(name string) string {
	name = strings.ToLower(name)
	var b strings.Builder
	b.Grow(len(name))
	prevSep := false
	for _, r := range name {
		if r == '.' || r == '-' || r == '_' {
			prevSep = true
			continue
		}
		if prevSep && b.Len() > 0 {
			b.WriteByte('-')
		}
		prevSep = false
		b.WriteRune(r)
	}
	return b.String()
}
