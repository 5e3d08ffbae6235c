package versions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// fakeTransport serves canned upstream responses keyed by URL.
type fakeTransport struct {
	text   map[string]string
	jsons  map[string]string
	exists map[string]bool
}

func (f *fakeTransport) GetText(ctx context.Context, url string) (string, error) {
	body, ok := f.text[url]
	if !ok {
		return "", fmt.Errorf("unexpected URL %s", url)
	}
	return body, nil
}

func (f *fakeTransport) GetJSON(ctx context.Context, url string, v any) error {
	body, ok := f.jsons[url]
	if !ok {
		return fmt.Errorf("unexpected URL %s", url)
	}
	return json.Unmarshal([]byte(body), v)
}

func (f *fakeTransport) Exists(ctx context.Context, url string) (bool, error) {
	return f.exists[url], nil
}

func TestRefresh(t *testing.T) {
	transport := &fakeTransport{
		text: map[string]string{
			"https://github.com/frida/frida/releases.atom": `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Frida 17.0.0</title>
    <published>2025-05-17T09:00:00Z</published>
    <link rel="alternate" href="https://github.com/frida/frida/releases/tag/17.0.0"/>
  </entry>
</feed>`,
			"https://github.com/frida/frida/releases": `<!DOCTYPE html>
<html><body>
  <relative-time datetime="2025-05-17T09:00:00Z"></relative-time>
  <a href="/frida/frida/releases/tag/17.0.0">17.0.0</a>
</body></html>`,
			"https://github.com/sensepost/objection/releases.atom": `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>objection 1.12.0</title>
    <published>2025-05-20T10:00:00Z</published>
    <link rel="alternate" href="https://github.com/sensepost/objection/releases/tag/1.12.0"/>
  </entry>
</feed>`,
			"https://github.com/sensepost/objection/releases": `<!DOCTYPE html>
<html><body>
  <relative-time datetime="2025-05-20T10:00:00Z"></relative-time>
  <a href="/sensepost/objection/releases/tag/1.12.0">1.12.0</a>
</body></html>`,
		},
		jsons: map[string]string{
			"https://pypi.org/pypi/frida-tools/json": `{
  "releases": {
    "14.0.0": [{"upload_time_iso_8601": "2025-05-18T10:00:00Z", "yanked": false}]
  }
}`,
			"https://pypi.org/pypi/frida-tools/14.0.0/json": `{
  "info": {"requires_dist": ["frida>=17.0.0", "frida<18.0.0"]}
}`,
		},
		exists: map[string]bool{
			"https://pypi.org/pypi/objection/1.12.0/json": true,
		},
	}

	m, err := Refresh(context.Background(), transport, DefaultConfig())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	info, ok := m.Mappings["17.0.0"]
	if !ok {
		t.Fatalf("Mappings missing 17.0.0: %v", m.Mappings)
	}
	if info.Tools != "14.0.0" {
		t.Errorf("Tools = %q, want %q", info.Tools, "14.0.0")
	}
	if info.Objection != "1.12.0" {
		t.Errorf("Objection = %q, want %q", info.Objection, "1.12.0")
	}
	if info.Released != "2025-05-17" {
		t.Errorf("Released = %q, want %q", info.Released, "2025-05-17")
	}
	if m.Aliases["latest"] != "17.0.0" {
		t.Errorf("Aliases[latest] = %q, want %q", m.Aliases["latest"], "17.0.0")
	}
}

func TestValidatePin(t *testing.T) {
	m := Builtin()

	tests := []struct {
		token   string
		want    string
		wantErr bool
	}{
		{"16.6.6", "16.6.6", false},
		{"latest", "16.6.6", false},
		{"lts", "15.2.2", false},
		{"17.9.9", "17.9.9", false},
		{"banana", "", true},
		{"17", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ValidatePin(m, tt.token)
			if tt.wantErr {
				var formatErr *VersionFormatError
				if !errors.As(err, &formatErr) {
					t.Fatalf("ValidatePin(%q) error = %v, want VersionFormatError", tt.token, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidatePin(%q) error = %v", tt.token, err)
			}
			if got != tt.want {
				t.Errorf("ValidatePin(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestBuiltinResolution(t *testing.T) {
	m := Builtin()

	r, ok := m.ResolveTools("latest")
	if !ok {
		t.Fatal("ResolveTools(latest) ok = false, want true")
	}
	if r.Version != "13.3.0" || r.MappedFrom != "16.6.6" {
		t.Errorf("ResolveTools(latest) = %+v", r)
	}
}
