package pypi

import (
	"strconv"
	"strings"
)

// PythonSatisfies reports whether a Python interpreter version meets a
// requires-python specifier like ">=3.8, <4" or "==3.11.*". An empty
// specifier admits everything; clauses that cannot be interpreted are
// ignored rather than failing the whole specifier.
func PythonSatisfies(spec, pythonVersion string) bool {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return true
	}

	have, ok := parsePythonVersion(pythonVersion)
	if !ok {
		return true
	}

	for _, clause := range strings.Split(spec, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		if !clauseSatisfied(clause, have) {
			return false
		}
	}
	return true
}

func clauseSatisfied(clause string, have [3]int) bool {
	type op struct {
		prefix string
		check  func(cmp int) bool
	}
	ops := []op{
		{">=", func(cmp int) bool { return cmp >= 0 }},
		{"<=", func(cmp int) bool { return cmp <= 0 }},
		{"==", func(cmp int) bool { return cmp == 0 }},
		{"<", func(cmp int) bool { return cmp < 0 }},
		{">", func(cmp int) bool { return cmp > 0 }},
	}

	for _, o := range ops {
		rest, ok := strings.CutPrefix(clause, o.prefix)
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)

		// "==3.11.*" pins the major.minor series only.
		if o.prefix == "==" && strings.HasSuffix(rest, ".*") {
			want, ok := parsePythonVersion(strings.TrimSuffix(rest, ".*"))
			if !ok {
				return true
			}
			return have[0] == want[0] && have[1] == want[1]
		}

		want, ok := parsePythonVersion(rest)
		if !ok {
			return true
		}
		// "==3.11" with an omitted or zero patch pins the series, not
		// one exact build.
		if o.prefix == "==" && want[2] == 0 {
			return have[0] == want[0] && have[1] == want[1]
		}
		return o.check(comparePythonVersions(have, want))
	}

	// Unknown operators such as "~=" or "!=" are skipped.
	return true
}

// parsePythonVersion reads up to three numeric components, skipping a
// leading non-digit prefix.
func parsePythonVersion(s string) ([3]int, bool) {
	s = strings.TrimSpace(s)
	start := strings.IndexFunc(s, func(r rune) bool {
		return r >= '0' && r <= '9'
	})
	if start < 0 {
		return [3]int{}, false
	}
	s = s[start:]

	var out [3]int
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			if i == 0 {
				return [3]int{}, false
			}
			break
		}
		out[i] = n
	}
	return out, true
}

func comparePythonVersions(a, b [3]int) int {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
