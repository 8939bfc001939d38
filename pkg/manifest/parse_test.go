package manifest

import (
	"strings"
	"testing"
)

// spanText cuts the raw text a span covers, for asserting spans are exact.
func spanText(text string, start, end int) string {
	return text[start:end]
}

func depByName(t *testing.T, deps []Dependency, name string) Dependency {
	t.Helper()
	for _, d := range deps {
		if d.Name.Value == name {
			return d
		}
	}
	t.Fatalf("dependency %q not found in %+v", name, deps)
	return Dependency{}
}

func TestParse_SimpleEntries(t *testing.T) {
	text := `[package]
name = "demo"

[dependencies]
serde = "1.0.0"
anyhow = "1"
`
	deps, problems := Parse(text)
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %+v", problems)
	}
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependencies, got %+v", deps)
	}

	serde := depByName(t, deps, "serde")
	if serde.Section != "dependencies" || serde.Kind != SourceRegistry {
		t.Errorf("wrong section or kind: %+v", serde)
	}
	if got := spanText(text, serde.Name.Start, serde.Name.End); got != "serde" {
		t.Errorf("name span covers %q", got)
	}
	if serde.Version == nil {
		t.Fatal("missing version span")
	}
	if serde.Version.Value != "1.0.0" {
		t.Errorf("version value = %q", serde.Version.Value)
	}
	if got := spanText(text, serde.Version.Start, serde.Version.End); got != `"1.0.0"` {
		t.Errorf("version span covers %q, want quoted literal", got)
	}
}

func TestParse_InlineTable(t *testing.T) {
	text := `[dependencies]
serde = { version = "1.0", features = ["derive", "rc"] }
`
	deps, problems := Parse(text)
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %+v", problems)
	}
	serde := depByName(t, deps, "serde")

	if serde.Version == nil || serde.Version.Value != "1.0" {
		t.Fatalf("version = %+v", serde.Version)
	}
	if got := spanText(text, serde.Version.Start, serde.Version.End); got != `"1.0"` {
		t.Errorf("version span covers %q", got)
	}

	if len(serde.Features) != 2 {
		t.Fatalf("features = %+v", serde.Features)
	}
	if serde.Features[0].Value != "derive" || serde.Features[1].Value != "rc" {
		t.Errorf("feature values = %+v", serde.Features)
	}
	if got := spanText(text, serde.Features[0].Start, serde.Features[0].End); got != `"derive"` {
		t.Errorf("feature span covers %q", got)
	}
	if serde.FeaturesRange == nil {
		t.Fatal("missing features range")
	}
	if serde.FeaturesRange.Start != serde.Features[0].Range.Start ||
		serde.FeaturesRange.End != serde.Features[1].Range.End {
		t.Errorf("features range is not the union of element spans: %+v", serde.FeaturesRange)
	}
}

func TestParse_TablePerCrate(t *testing.T) {
	text := `[dependencies.tokio]
version = "1.38"
features = ["rt", "macros"]

[dev-dependencies.pretty_assertions]
version = "1"
`
	deps, problems := Parse(text)
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %+v", problems)
	}
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependencies, got %+v", deps)
	}

	tokio := depByName(t, deps, "tokio")
	if tokio.Section != "dependencies" {
		t.Errorf("section = %q", tokio.Section)
	}
	if got := spanText(text, tokio.Name.Start, tokio.Name.End); got != "tokio" {
		t.Errorf("name span covers %q", got)
	}
	if tokio.Version == nil || tokio.Version.Value != "1.38" {
		t.Errorf("version = %+v", tokio.Version)
	}
	if len(tokio.Features) != 2 {
		t.Errorf("features = %+v", tokio.Features)
	}

	pa := depByName(t, deps, "pretty_assertions")
	if pa.Section != "dev-dependencies" {
		t.Errorf("section = %q", pa.Section)
	}
}

func TestParse_Sections(t *testing.T) {
	text := `[dependencies]
a = "1"

[dev-dependencies]
b = "1"

[build-dependencies]
c = "1"

[target.'cfg(unix)'.dependencies]
d = "1"

[profile.release]
lto = true
`
	deps, problems := Parse(text)
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %+v", problems)
	}
	want := map[string]string{
		"a": "dependencies",
		"b": "dev-dependencies",
		"c": "build-dependencies",
		"d": "dependencies",
	}
	if len(deps) != len(want) {
		t.Fatalf("expected %d dependencies, got %+v", len(want), deps)
	}
	for name, section := range want {
		if got := depByName(t, deps, name).Section; got != section {
			t.Errorf("%s in section %q, want %q", name, got, section)
		}
	}
}

func TestParse_SourceKinds(t *testing.T) {
	text := `[dependencies]
gitdep = { git = "https://github.com/serde-rs/serde", branch = "main" }
pathdep = { path = "../local" }
wsdep = { workspace = true }
both = { git = "https://example.com/x", path = "vendor/x" }
plain = "1"
`
	deps, _ := Parse(text)

	if got := depByName(t, deps, "gitdep").Kind; got != SourceGit {
		t.Errorf("gitdep kind = %v", got)
	}
	if got := depByName(t, deps, "pathdep").Kind; got != SourceLocal {
		t.Errorf("pathdep kind = %v", got)
	}
	if got := depByName(t, deps, "wsdep").Kind; got != SourceWorkspace {
		t.Errorf("wsdep kind = %v", got)
	}
	if got := depByName(t, deps, "both").Kind; got != SourceGit {
		t.Errorf("git wins over path, got %v", got)
	}
	if got := depByName(t, deps, "plain").Kind; got != SourceRegistry {
		t.Errorf("plain kind = %v", got)
	}
}

func TestParse_Rename(t *testing.T) {
	text := `[dependencies]
serde1 = { package = "serde", version = "1" }
`
	deps, _ := Parse(text)
	d := depByName(t, deps, "serde1")
	if d.Package == nil || d.Package.Value != "serde" {
		t.Fatalf("package = %+v", d.Package)
	}
	if d.RegistryName() != "serde" {
		t.Errorf("RegistryName = %q", d.RegistryName())
	}
}

func TestParse_MalformedEntries(t *testing.T) {
	text := `[dependencies]
bad = 12
worse = { version = 3 }
strange = { features = "derive" }
ok = "1"
`
	deps, problems := Parse(text)

	if len(problems) != 3 {
		t.Fatalf("expected 3 problems, got %+v", problems)
	}
	// Broken entries are skipped, the malformed attribute only costs the
	// attribute, and the healthy entry survives.
	depByName(t, deps, "ok")
	depByName(t, deps, "worse")
	for _, d := range deps {
		if d.Name.Value == "bad" {
			t.Errorf("non-string, non-table entry should be skipped: %+v", d)
		}
	}
}

func TestParse_SyntaxErrorKeepsPrefix(t *testing.T) {
	// Mid-keystroke manifest: the second entry is still being typed.
	text := `[dependencies]
serde = "1.0"
tokio = "1.
`
	deps, problems := Parse(text)

	if len(deps) == 0 || deps[0].Name.Value != "serde" {
		t.Fatalf("expected serde to survive the syntax error, got %+v", deps)
	}
	if len(problems) == 0 {
		t.Fatal("expected a problem for the syntax error")
	}
	if !strings.Contains(problems[len(problems)-1].Message, "invalid manifest") {
		t.Errorf("problem message = %q", problems[len(problems)-1].Message)
	}
}

func TestParse_OutsideSectionsIgnored(t *testing.T) {
	text := `[package]
name = "demo"
version = "0.1.0"

[features]
default = ["std"]
`
	deps, problems := Parse(text)
	if len(deps) != 0 || len(problems) != 0 {
		t.Errorf("expected nothing, got deps=%+v problems=%+v", deps, problems)
	}
}

func TestParse_QuotedName(t *testing.T) {
	text := `[dependencies]
"serde" = "1"
`
	deps, _ := Parse(text)
	d := depByName(t, deps, "serde")
	if got := spanText(text, d.Name.Start, d.Name.End); got != `"serde"` {
		t.Errorf("quoted name span covers %q", got)
	}
}
