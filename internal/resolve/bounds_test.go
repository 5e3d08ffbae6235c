package resolve

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func version(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.StrictNewVersion(s)
	require.NoError(t, err)
	return v
}

func TestParseAnchorBounds(t *testing.T) {
	requires := []string{
		"colorama >=0.4.4",
		"frida>=17.2.2",
		"other>=1.0.0",
		"frida<18.0.0",
	}

	b := ParseAnchorBounds(requires, "frida")
	require.NotNil(t, b.Min)
	require.NotNil(t, b.Max)
	assert.Equal(t, "17.2.2", b.Min.String())
	assert.Equal(t, "18.0.0", b.Max.String())
}

func TestParseAnchorBoundsIgnoresPrefixedNames(t *testing.T) {
	requires := []string{
		"frida-tools >=13.0.0",
		"fridalib >=2.0.0",
	}

	b := ParseAnchorBounds(requires, "frida")
	assert.Nil(t, b.Min)
	assert.Nil(t, b.Max)
}

func TestParseAnchorBoundsCombinedClause(t *testing.T) {
	b := ParseAnchorBounds([]string{"frida >=16.2.2,<17.0.0"}, "frida")
	require.NotNil(t, b.Min)
	require.NotNil(t, b.Max)
	assert.Equal(t, "16.2.2", b.Min.String())
	assert.Equal(t, "17.0.0", b.Max.String())
}

func TestParseAnchorBoundsEnvironmentMarker(t *testing.T) {
	b := ParseAnchorBounds([]string{`frida >=17.0.0 ; python_version >= "3.8"`}, "frida")
	require.NotNil(t, b.Min)
	assert.Equal(t, "17.0.0", b.Min.String())
	assert.Nil(t, b.Max)
}

func TestBoundsAdmits(t *testing.T) {
	b := Bounds{
		Min: version(t, "17.2.2"),
		Max: version(t, "18.0.0"),
	}

	tests := []struct {
		version string
		want    bool
	}{
		{"17.5.0", true},
		{"17.2.2", true},
		{"18.0.0", false},
		{"16.6.6", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Admits(version(t, tt.version)))
		})
	}
}

func TestBoundsUnboundedAdmitsEverything(t *testing.T) {
	var b Bounds
	assert.True(t, b.Admits(version(t, "0.0.1")))
	assert.True(t, b.Admits(version(t, "99.0.0")))
}
