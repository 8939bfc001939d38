package lsp

import (
	"fmt"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/matzehuels/cratesls/pkg/registry"
	"github.com/matzehuels/cratesls/pkg/versions"
)

// formatList renders names the way Cargo documentation does:
//
//	[ derive, rc, std ]
func formatList(items []string) string {
	return "[ " + strings.Join(items, ", ") + " ]"
}

// nameHover builds the hover text for a dependency name: a name/version
// header, the feature list of the latest version when it has one, and the
// crate description (or a placeholder while it is still being fetched).
func nameHover(meta *registry.Metadata) string {
	latest, ok := meta.Latest()
	if !ok {
		return fmt.Sprintf("%s: no usable version", meta.Name)
	}

	parts := []string{fmt.Sprintf("%s: %s", meta.Name, latest.Semver.Original())}

	if len(latest.Features) > 0 {
		names := make([]string, len(latest.Features))
		for i, f := range latest.Features {
			names[i] = f.Name
		}
		parts = append(parts, formatList(names))
	}

	switch meta.DescriptionState {
	case registry.DescriptionReady:
		if meta.Description != "" {
			parts = append(parts, meta.Description)
		}
	case registry.DescriptionPending:
		parts = append(parts, "(description pending)")
	case registry.DescriptionUnavailable:
		parts = append(parts, "(description unavailable)")
	}

	return strings.Join(parts, "\n\n")
}

// featureHover builds the hover text for a feature name: the feature and
// what enabling it pulls in.
func featureHover(f registry.Feature) string {
	return f.Name + "\n\n" + formatList(f.Enables)
}

// versionItems turns the candidate list for latest into completion items,
// most specific first. SortText pins the order against client-side
// alphabetical sorting.
func versionItems(latest *registry.Version) []protocol.CompletionItem {
	candidates := versions.Completions(latest.Semver)
	items := make([]protocol.CompletionItem, len(candidates))
	for i, c := range candidates {
		items[i] = protocol.CompletionItem{
			Label:    c.Text,
			Detail:   c.Granularity,
			Kind:     protocol.CompletionItemKindValue,
			SortText: fmt.Sprintf("%d", i),
		}
	}
	return items
}

// featureItems turns the not-yet-enabled features of latest into completion
// items, each detailed with what it enables.
func featureItems(latest *registry.Version, enabled []string) []protocol.CompletionItem {
	features := versions.FeatureCompletions(latest, enabled)
	items := make([]protocol.CompletionItem, len(features))
	for i, f := range features {
		items[i] = protocol.CompletionItem{
			Label:  f.Name,
			Detail: formatList(f.Enables),
			Kind:   protocol.CompletionItemKindValue,
		}
	}
	return items
}
