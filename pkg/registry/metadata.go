package registry

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// DescriptionState tracks the lifecycle of the description fetch, which
// completes independently of the version listing.
type DescriptionState int

const (
	// DescriptionPending means the description fetch has not completed yet.
	DescriptionPending DescriptionState = iota
	// DescriptionReady means Description holds the fetched text.
	DescriptionReady
	// DescriptionUnavailable means the fetch failed; there is no text and
	// none will arrive for this entry.
	DescriptionUnavailable
)

// Feature is a named feature of a crate version together with the features
// and optional dependencies it enables.
type Feature struct {
	Name    string
	Enables []string
}

// Version is one published version of a crate.
type Version struct {
	// Semver is the parsed version, never nil for a Version held in Metadata.
	Semver *semver.Version
	// Raw is the version string exactly as published, including any
	// pre-release or build qualifier.
	Raw string
	// Yanked versions are excluded from latest-version selection but kept in
	// history.
	Yanked bool
	// Features holds the features declared at this version, sorted by name.
	Features []Feature
}

// Feature returns the declared feature with the given name.
func (v *Version) Feature(name string) (Feature, bool) {
	i := sort.Search(len(v.Features), func(i int) bool { return v.Features[i].Name >= name })
	if i < len(v.Features) && v.Features[i].Name == name {
		return v.Features[i], true
	}
	return Feature{}, false
}

// Metadata is the resolved picture of one crate: every published version in
// ascending semver order, plus the description once its fetch lands.
// Metadata values returned by [Cache.Resolve] are snapshots; they are safe
// for concurrent reads and never mutated after return.
type Metadata struct {
	Name     string
	Versions []Version

	Description      string
	DescriptionState DescriptionState
}

// Latest returns the highest non-yanked version. It returns false when the
// crate has no versions or all of them are yanked.
func (m *Metadata) Latest() (*Version, bool) {
	for i := len(m.Versions) - 1; i >= 0; i-- {
		if !m.Versions[i].Yanked {
			return &m.Versions[i], true
		}
	}
	return nil, false
}

func sortVersions(vs []Version) {
	sort.Slice(vs, func(i, j int) bool {
		return vs[i].Semver.LessThan(vs[j].Semver)
	})
}

func sortFeatures(fs []Feature) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].Name < fs[j].Name })
}
