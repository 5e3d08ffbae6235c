package resolve

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Bounds is an anchor version window with an inclusive lower bound and
// an exclusive upper bound. A nil side is unbounded.
type Bounds struct {
	Min *semver.Version
	Max *semver.Version
}

// Admits reports whether a version falls inside the window.
func (b Bounds) Admits(v *semver.Version) bool {
	if b.Min != nil && v.LessThan(b.Min) {
		return false
	}
	if b.Max != nil && !v.LessThan(b.Max) {
		return false
	}
	return true
}

// ParseAnchorBounds extracts the anchor version window from a list of
// PEP 508 dependency specifiers. Only lines for the named anchor
// package count, and only ">=" raises the lower bound while "<" lowers
// the upper bound. Environment markers after ";" are ignored.
func ParseAnchorBounds(requiresDist []string, anchorName string) Bounds {
	var b Bounds
	for _, line := range requiresDist {
		line = strings.TrimSpace(line)
		rest, ok := cutAnchorName(line, anchorName)
		if !ok {
			continue
		}

		// Drop the environment marker and any extras bracket.
		if i := strings.Index(rest, ";"); i >= 0 {
			rest = rest[:i]
		}
		if i := strings.Index(rest, "["); i >= 0 {
			if j := strings.Index(rest, "]"); j > i {
				rest = rest[:i] + rest[j+1:]
			}
		}
		rest = strings.Trim(rest, " ()")

		for _, clause := range strings.Split(rest, ",") {
			op, version := splitOp(strings.TrimSpace(clause))
			if version == "" {
				continue
			}
			v, err := semver.StrictNewVersion(version)
			if err != nil {
				continue
			}
			switch op {
			case ">=":
				if b.Min == nil || v.GreaterThan(b.Min) {
					b.Min = v
				}
			case "<":
				if b.Max == nil || v.LessThan(b.Max) {
					b.Max = v
				}
			}
		}
	}
	return b
}

// cutAnchorName matches a specifier line against the anchor package
// name. The character after the name must start a constraint so that
// "frida" does not match "frida-tools".
func cutAnchorName(line, anchorName string) (string, bool) {
	if !strings.HasPrefix(line, anchorName) {
		return "", false
	}
	rest := line[len(anchorName):]
	if rest == "" {
		return "", true
	}
	switch rest[0] {
	case ' ', '(', '[', ';', '>', '<', '=', '!', '~':
		return rest, true
	}
	return "", false
}

func splitOp(clause string) (op, version string) {
	for _, candidate := range []string{">=", "<=", "==", "<", ">"} {
		if rest, ok := strings.CutPrefix(clause, candidate); ok {
			return candidate, strings.TrimSpace(rest)
		}
	}
	return "", ""
}
