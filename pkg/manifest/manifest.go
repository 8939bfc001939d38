package manifest

// Position is a zero-based line/character location in the manifest text.
// Characters are counted in UTF-16 code units, matching what editors send.
type Position struct {
	Line      uint32
	Character uint32
}

// Range is a half-open [Start, End) span of manifest text.
type Range struct {
	Start Position
	End   Position
}

// Contains reports whether pos falls inside the range, end-inclusive, so a
// cursor sitting on a closing quote still counts as inside.
func (r Range) Contains(pos Position) bool {
	if pos.Line < r.Start.Line || pos.Line > r.End.Line {
		return false
	}
	if pos.Line == r.Start.Line && pos.Character < r.Start.Character {
		return false
	}
	if pos.Line == r.End.Line && pos.Character > r.End.Character {
		return false
	}
	return true
}

// Span is a parsed value together with its exact location in the source:
// byte offsets and the derived line/character range. String spans include
// the surrounding quotes so replacement edits swap the whole literal.
type Span[T any] struct {
	Value T
	// Start and End are byte offsets into the document text.
	Start, End int
	Range      Range
}

// SourceKind tells where a dependency is pulled from. Only registry
// dependencies are resolved against crates.io.
type SourceKind int

const (
	// SourceRegistry pulls the dependency from the registry.
	SourceRegistry SourceKind = iota
	// SourceGit pulls from a git repository.
	SourceGit
	// SourceLocal pulls from a local path.
	SourceLocal
	// SourceWorkspace inherits the dependency from the workspace.
	SourceWorkspace
)

// Dependency is one declared dependency entry with source positions for
// every piece an editor feature might anchor to. Dependencies are created
// fresh on every parse and never mutated afterwards.
type Dependency struct {
	// Name is the dependency key as written.
	Name Span[string]
	// Section is the dependency table the entry came from: "dependencies",
	// "dev-dependencies" or "build-dependencies".
	Section string
	Kind    SourceKind

	// Version holds the requirement text as written, nil when the entry has
	// no version (git, path and workspace dependencies usually don't).
	Version *Span[string]

	// Package is the real registry name for renamed dependencies
	// (foo = { package = "bar", ... }); nil otherwise.
	Package *Span[string]

	// Features lists the enabled feature names as written, in order.
	Features []Span[string]
	// FeaturesRange covers the written feature list (the union of the
	// element spans); nil when no features are written.
	FeaturesRange *Range
}

// RegistryName returns the name to resolve against the registry, honoring a
// rename via the package key.
func (d *Dependency) RegistryName() string {
	if d.Package != nil {
		return d.Package.Value
	}
	return d.Name.Value
}

// EnabledFeatures returns the written feature names.
func (d *Dependency) EnabledFeatures() []string {
	if len(d.Features) == 0 {
		return nil
	}
	out := make([]string, len(d.Features))
	for i, f := range d.Features {
		out[i] = f.Value
	}
	return out
}

// Problem is a local, non-fatal parse complaint attached to the entry that
// caused it. Problems never fail the document.
type Problem struct {
	Message string
	Range   Range
}
