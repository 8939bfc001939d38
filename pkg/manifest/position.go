package manifest

import (
	"sort"
	"unicode/utf8"
)

// positioner converts byte offsets in a document to line/character
// positions. Line starts are indexed once; each conversion then costs a
// binary search plus a scan of the containing line prefix.
type positioner struct {
	text       string
	lineStarts []int
}

func newPositioner(text string) *positioner {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &positioner{text: text, lineStarts: starts}
}

// position converts a byte offset to a Position. Offsets beyond the text
// clamp to the end. Characters are counted in UTF-16 code units.
func (p *positioner) position(offset int) Position {
	if offset > len(p.text) {
		offset = len(p.text)
	}
	line := sort.Search(len(p.lineStarts), func(i int) bool {
		return p.lineStarts[i] > offset
	}) - 1

	char := uint32(0)
	for i := p.lineStarts[line]; i < offset; {
		r, size := utf8.DecodeRuneInString(p.text[i:])
		if r > 0xFFFF {
			char += 2
		} else {
			char++
		}
		i += size
	}
	return Position{Line: uint32(line), Character: char}
}

// spanRange converts a byte span to a Range.
func (p *positioner) spanRange(start, end int) Range {
	return Range{Start: p.position(start), End: p.position(end)}
}
