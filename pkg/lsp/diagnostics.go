package lsp

import (
	"context"
	"fmt"

	"go.lsp.dev/protocol"

	"github.com/matzehuels/cratesls/pkg/manifest"
	"github.com/matzehuels/cratesls/pkg/versions"
)

const diagnosticSource = "cratesls"

// diagnosticsFor computes the full diagnostic set for a document: parse
// problems, latest-version hints and unknown-feature errors. A crate that
// fails to resolve contributes nothing; failures degrade to silence, never
// to editor-visible errors.
func (s *Server) diagnosticsFor(ctx context.Context, doc *Document) []protocol.Diagnostic {
	// Non-nil so an empty result still clears stale diagnostics on publish.
	diags := []protocol.Diagnostic{}

	for _, p := range doc.Problems {
		diags = append(diags, protocol.Diagnostic{
			Range:    toProtocolRange(p.Range),
			Severity: protocol.DiagnosticSeverityWarning,
			Source:   diagnosticSource,
			Message:  p.Message,
		})
	}

	for i := range doc.Deps {
		diags = append(diags, s.dependencyDiagnostics(ctx, &doc.Deps[i])...)
	}
	return diags
}

func (s *Server) dependencyDiagnostics(ctx context.Context, dep *manifest.Dependency) []protocol.Diagnostic {
	if dep.Kind != manifest.SourceRegistry {
		return nil
	}

	meta, err := s.cache.Resolve(ctx, dep.RegistryName())
	if err != nil {
		return nil
	}
	latest, ok := meta.Latest()
	if !ok {
		return nil
	}

	var diags []protocol.Diagnostic

	// Latest version hint, skipped when the manifest already names it.
	if dep.Version != nil && versions.IsOutdated(dep.Version.Value, latest.Semver) {
		diags = append(diags, protocol.Diagnostic{
			Range:    toProtocolRange(dep.Version.Range),
			Severity: protocol.DiagnosticSeverityInformation,
			Source:   diagnosticSource,
			Message:  latest.Semver.Original(),
		})
	}

	for _, f := range dep.Features {
		if _, ok := latest.Feature(f.Value); !ok {
			diags = append(diags, protocol.Diagnostic{
				Range:    toProtocolRange(f.Range),
				Severity: protocol.DiagnosticSeverityError,
				Source:   diagnosticSource,
				Message:  fmt.Sprintf("no such feature available for crate `%s`", dep.RegistryName()),
			})
		}
	}
	return diags
}

func toProtocolRange(r manifest.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: r.Start.Line, Character: r.Start.Character},
		End:   protocol.Position{Line: r.End.Line, Character: r.End.Character},
	}
}

func toManifestPosition(p protocol.Position) manifest.Position {
	return manifest.Position{Line: p.Line, Character: p.Character}
}
