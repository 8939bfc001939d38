// Package versions derives user-facing version artifacts from resolved
// crate metadata: outdated checks for diagnostics and candidate lists for
// completions. Everything here is pure; no I/O.
package versions

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/cratesls/pkg/registry"
)

// Candidate is one version-string completion at a specific granularity.
type Candidate struct {
	Text string
	// Granularity labels the truncation level: "latest", "patch", "minor"
	// or "major".
	Granularity string
}

// Completions produces the deduplicated, most-specific-first candidate list
// derived from latest: the full version exactly as published (only when it
// carries a pre-release or build qualifier), then major.minor.patch,
// major.minor and major. Truncations that would repeat an earlier candidate
// are dropped.
func Completions(latest *semver.Version) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)
	add := func(text, granularity string) {
		if !seen[text] {
			seen[text] = true
			out = append(out, Candidate{Text: text, Granularity: granularity})
		}
	}

	if latest.Prerelease() != "" || latest.Metadata() != "" {
		add(latest.Original(), "latest")
	}
	add(fmt.Sprintf("%d.%d.%d", latest.Major(), latest.Minor(), latest.Patch()), "patch")
	add(fmt.Sprintf("%d.%d", latest.Major(), latest.Minor()), "minor")
	add(fmt.Sprintf("%d", latest.Major()), "major")

	return out
}

// IsOutdated reports whether the written requirement names something other
// than the latest version. The requirement text is compared as the version
// it literally names, ignoring any leading operator; text that doesn't name
// a version at all counts as outdated so the latest-version hint still
// shows.
func IsOutdated(requirement string, latest *semver.Version) bool {
	named, ok := namedVersion(requirement)
	if !ok {
		return true
	}
	return !named.Equal(latest)
}

// namedVersion extracts the version literally written in a requirement,
// tolerating the common single-comparator forms ("1.0", "^1.0", "~1.2.3",
// "=1.2.3", ">=1.0"). Multi-comparator and wildcard requirements don't name
// one version.
func namedVersion(requirement string) (*semver.Version, bool) {
	s := strings.TrimSpace(requirement)
	s = strings.TrimLeft(s, "^~=<> ")
	if s == "" || strings.ContainsAny(s, ",*") {
		return nil, false
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, false
	}
	return v, true
}

// FeatureCompletions returns the features declared at v that the dependency
// hasn't enabled yet, in the order the registry declares them.
func FeatureCompletions(v *registry.Version, enabled []string) []registry.Feature {
	used := make(map[string]bool, len(enabled))
	for _, f := range enabled {
		used[f] = true
	}

	var out []registry.Feature
	for _, f := range v.Features {
		if !used[f.Name] {
			out = append(out, f)
		}
	}
	return out
}
