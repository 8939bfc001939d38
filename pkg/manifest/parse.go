package manifest

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2/unstable"
)

// Sections are the dependency tables recognized in a manifest, also in
// their target-specific forms ([target.<cfg>.dependencies]).
var sections = []string{"dependencies", "dev-dependencies", "build-dependencies"}

func isSection(name string) bool {
	for _, s := range sections {
		if name == s {
			return true
		}
	}
	return false
}

// Parse extracts every dependency declaration from manifest text, with
// exact source spans for names, version strings and feature elements.
//
// Parsing never fails the document: malformed entries are skipped into the
// returned problems, and a syntax error (constant while the user is
// mid-keystroke) still yields every entry parsed before it.
func Parse(text string) ([]Dependency, []Problem) {
	d := &docParser{pos: newPositioner(text)}

	p := &unstable.Parser{}
	p.Reset([]byte(text))

	for p.NextExpression() {
		e := p.Expression()
		switch e.Kind {
		case unstable.Table, unstable.ArrayTable:
			d.flush()
			d.enterTable(e)
		case unstable.KeyValue:
			d.keyValue(e)
		}
	}
	d.flush()

	if err := p.Error(); err != nil {
		prob := Problem{Message: fmt.Sprintf("invalid manifest: %v", err)}
		var perr *unstable.ParserError
		if errors.As(err, &perr) {
			r := p.Range(perr.Highlight)
			prob.Range = d.pos.spanRange(int(r.Offset), int(r.Offset)+int(r.Length))
		}
		d.problems = append(d.problems, prob)
	}

	return d.deps, d.problems
}

type keyPart struct {
	text       string
	start, end int
}

type docParser struct {
	pos      *positioner
	deps     []Dependency
	problems []Problem

	// section is the dependency table currently open, "" outside of one.
	// pending is the dependency being accumulated in table-per-crate form
	// ([dependencies.serde]); its fields arrive as separate key-values.
	section string
	pending *Dependency
}

func (d *docParser) enterTable(e *unstable.Node) {
	d.section, d.pending = "", nil

	parts := d.keyParts(e)
	n := len(parts)
	targeted := n > 0 && parts[0].text == "target"

	switch {
	case n >= 1 && isSection(parts[n-1].text) && (n == 1 || targeted):
		d.section = parts[n-1].text
	case n >= 2 && isSection(parts[n-2].text) && (n == 2 || targeted):
		d.section = parts[n-2].text
		dep := Dependency{Name: d.partSpan(parts[n-1]), Section: d.section}
		d.pending = &dep
	}
}

func (d *docParser) keyValue(e *unstable.Node) {
	if d.section == "" {
		return
	}

	if d.pending != nil {
		parts := d.keyParts(e)
		if len(parts) != 1 {
			d.problem("dotted keys are not recognized here", parts)
			return
		}
		d.fill(d.pending, parts[0], e.Value())
		return
	}

	parts := d.keyParts(e)
	if len(parts) != 1 {
		d.problem("dotted dependency keys are not recognized", parts)
		return
	}

	dep := Dependency{Name: d.partSpan(parts[0]), Section: d.section}
	value := e.Value()

	switch value.Kind {
	case unstable.String:
		v := d.stringSpan(value)
		dep.Version = &v
	case unstable.InlineTable:
		for it := value.Children(); it.Next(); {
			kv := it.Node()
			if kv.Kind != unstable.KeyValue {
				continue
			}
			kparts := d.keyParts(kv)
			if len(kparts) != 1 {
				d.problem("dotted keys are not recognized here", kparts)
				continue
			}
			d.fill(&dep, kparts[0], kv.Value())
		}
	default:
		d.problem(fmt.Sprintf("dependency %q must be a version string or a table", dep.Name.Value), parts)
		return
	}

	d.deps = append(d.deps, dep)
}

// fill applies one dependency attribute (version, features, source keys)
// to dep. Unknown keys are ignored; they are legal manifest content
// (optional, default-features, ...) that nothing here consumes.
func (d *docParser) fill(dep *Dependency, key keyPart, value *unstable.Node) {
	switch key.text {
	case "version":
		if value.Kind != unstable.String {
			d.problem(fmt.Sprintf("version of %q must be a string", dep.Name.Value), []keyPart{key})
			return
		}
		v := d.stringSpan(value)
		dep.Version = &v
	case "package":
		if value.Kind == unstable.String {
			v := d.stringSpan(value)
			dep.Package = &v
		}
	case "features":
		if value.Kind != unstable.Array {
			d.problem(fmt.Sprintf("features of %q must be an array", dep.Name.Value), []keyPart{key})
			return
		}
		d.features(dep, value)
	case "git":
		dep.Kind = SourceGit
	case "path":
		if dep.Kind == SourceRegistry {
			dep.Kind = SourceLocal
		}
	case "workspace":
		dep.Kind = SourceWorkspace
	}
}

func (d *docParser) features(dep *Dependency, arr *unstable.Node) {
	for it := arr.Children(); it.Next(); {
		el := it.Node()
		if el.Kind != unstable.String {
			start := int(el.Raw.Offset)
			d.problems = append(d.problems, Problem{
				Message: fmt.Sprintf("feature of %q must be a string", dep.Name.Value),
				Range:   d.pos.spanRange(start, start+int(el.Raw.Length)),
			})
			continue
		}
		dep.Features = append(dep.Features, d.stringSpan(el))
	}

	if len(dep.Features) > 0 {
		r := Range{
			Start: dep.Features[0].Range.Start,
			End:   dep.Features[len(dep.Features)-1].Range.End,
		}
		dep.FeaturesRange = &r
	}
}

func (d *docParser) flush() {
	if d.pending != nil {
		d.deps = append(d.deps, *d.pending)
		d.pending = nil
	}
}

func (d *docParser) keyParts(e *unstable.Node) []keyPart {
	var parts []keyPart
	for it := e.Key(); it.Next(); {
		k := it.Node()
		parts = append(parts, keyPart{
			text:  string(k.Data),
			start: int(k.Raw.Offset),
			end:   int(k.Raw.Offset) + int(k.Raw.Length),
		})
	}
	return parts
}

func (d *docParser) partSpan(p keyPart) Span[string] {
	return Span[string]{
		Value: p.text,
		Start: p.start,
		End:   p.end,
		Range: d.pos.spanRange(p.start, p.end),
	}
}

// stringSpan builds the span of a string value. Raw covers the literal as
// written, quotes included, which is exactly what replacement edits and
// in-quotes cursor checks want.
func (d *docParser) stringSpan(v *unstable.Node) Span[string] {
	start := int(v.Raw.Offset)
	end := start + int(v.Raw.Length)
	return Span[string]{
		Value: string(v.Data),
		Start: start,
		End:   end,
		Range: d.pos.spanRange(start, end),
	}
}

func (d *docParser) problem(msg string, parts []keyPart) {
	var r Range
	if len(parts) > 0 {
		r = d.pos.spanRange(parts[0].start, parts[len(parts)-1].end)
	}
	d.problems = append(d.problems, Problem{Message: msg, Range: r})
}
