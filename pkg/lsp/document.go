package lsp

import (
	"strings"
	"sync"
	"unicode/utf8"

	"go.lsp.dev/protocol"

	"github.com/matzehuels/cratesls/pkg/manifest"
)

// Document is one open manifest: its current text plus the dependency list
// parsed from it. Documents are rebuilt wholesale on every change and never
// mutated in place, so a handler holding one can keep using it while a
// newer version replaces it in the store.
type Document struct {
	URI      protocol.DocumentURI
	Version  int32
	Text     string
	Deps     []manifest.Dependency
	Problems []manifest.Problem
}

// Store tracks the open documents of a session.
type Store struct {
	mu   sync.RWMutex
	docs map[protocol.DocumentURI]*Document
}

func NewStore() *Store {
	return &Store{docs: make(map[protocol.DocumentURI]*Document)}
}

// Open registers a document with its full initial text.
func (s *Store) Open(uri protocol.DocumentURI, version int32, text string) *Document {
	doc := build(uri, version, text)
	s.mu.Lock()
	s.docs[uri] = doc
	s.mu.Unlock()
	return doc
}

// Change applies editor content changes to an open document and reparses.
// Returns nil for documents that were never opened.
func (s *Store) Change(uri protocol.DocumentURI, version int32, changes []protocol.TextDocumentContentChangeEvent) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.docs[uri]
	if !ok {
		return nil
	}

	text := old.Text
	for _, ch := range changes {
		if ch.Range == (protocol.Range{}) {
			text = ch.Text
			continue
		}
		start := offsetOf(text, ch.Range.Start)
		end := offsetOf(text, ch.Range.End)
		text = text[:start] + ch.Text + text[end:]
	}

	doc := build(uri, version, text)
	s.docs[uri] = doc
	return doc
}

// Close forgets a document.
func (s *Store) Close(uri protocol.DocumentURI) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

// Get returns the current snapshot of a document.
func (s *Store) Get(uri protocol.DocumentURI) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// All returns the current snapshot of every open document.
func (s *Store) All() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	return out
}

func build(uri protocol.DocumentURI, version int32, text string) *Document {
	deps, problems := manifest.Parse(text)
	return &Document{URI: uri, Version: version, Text: text, Deps: deps, Problems: problems}
}

// offsetOf converts an editor position (zero-based line, UTF-16 character)
// to a byte offset. Positions past the end of a line or the document clamp.
func offsetOf(text string, pos protocol.Position) int {
	offset := 0
	for line := uint32(0); line < pos.Line; line++ {
		nl := strings.IndexByte(text[offset:], '\n')
		if nl < 0 {
			return len(text)
		}
		offset += nl + 1
	}

	units := uint32(0)
	for offset < len(text) && units < pos.Character {
		r, size := utf8.DecodeRuneInString(text[offset:])
		if r == '\n' {
			break
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		offset += size
	}
	return offset
}
