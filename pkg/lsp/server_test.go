package lsp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"go.lsp.dev/protocol"

	"github.com/matzehuels/cratesls/pkg/registry"
)

const serdeIndex = `{"name":"serde","vers":"1.0.0","yanked":false,"features":{}}
{"name":"serde","vers":"1.0.210","yanked":false,"features":{"derive":["serde_derive"],"rc":[],"std":[]}}
`

// fakeRegistry serves both the sparse index and the crates.io API from one
// test server.
func fakeRegistry(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/crates/"):
			name := strings.TrimPrefix(r.URL.Path, "/api/crates/")
			if name != "serde" {
				http.NotFound(w, r)
				return
			}
			fmt.Fprint(w, `{"crate":{"name":"serde","description":"A serialization framework"}}`)
		case r.URL.Path == "/se/rd/serde":
			io.WriteString(w, serdeIndex)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testServer(t *testing.T) *Server {
	t.Helper()
	srv := fakeRegistry(t)
	index := registry.NewIndexClient(srv.URL)
	api := registry.NewAPIClient(srv.URL+"/api", registry.NewLimiter(time.Millisecond))
	cache := registry.NewCache(index, api, time.Minute)
	return NewServer(cache, log.New(io.Discard))
}

const testManifest = `[package]
name = "demo"

[dependencies]
serde = { version = "1.0.0", features = ["derive", "nope"] }
unknown-crate-xyz = "0.1"
local = { path = "../local" }
`

const testURI = protocol.DocumentURI("file:///tmp/Cargo.toml")

func openTestDoc(t *testing.T, s *Server) *Document {
	t.Helper()
	return s.docs.Open(testURI, 1, testManifest)
}

func TestDiagnostics(t *testing.T) {
	s := testServer(t)
	doc := openTestDoc(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	diags := s.diagnosticsFor(ctx, doc)

	// One outdated hint for serde, one unknown-feature error. The unknown
	// crate and the path dependency stay silent.
	if len(diags) != 2 {
		t.Fatalf("expected 2 diagnostics, got %+v", diags)
	}

	hint := diags[0]
	if hint.Severity != protocol.DiagnosticSeverityInformation {
		t.Errorf("hint severity = %v", hint.Severity)
	}
	if hint.Message != "1.0.210" {
		t.Errorf("hint message = %q, want latest version", hint.Message)
	}
	if hint.Range.Start.Line != 4 {
		t.Errorf("hint on line %d, want the serde line", hint.Range.Start.Line)
	}

	feat := diags[1]
	if feat.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("feature severity = %v", feat.Severity)
	}
	if !strings.Contains(feat.Message, "no such feature") {
		t.Errorf("feature message = %q", feat.Message)
	}
}

func TestDiagnostics_UpToDate(t *testing.T) {
	s := testServer(t)
	doc := s.docs.Open(testURI, 1, "[dependencies]\nserde = \"1.0.210\"\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if diags := s.diagnosticsFor(ctx, doc); len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %+v", diags)
	}
}

func TestCompletion_Versions(t *testing.T) {
	s := testServer(t)
	openTestDoc(t, s)

	// Inside the quotes of serde's version string.
	list, err := s.completion(context.Background(), &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
			Position:     protocol.Position{Line: 4, Character: 22},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if list == nil {
		t.Fatal("expected a completion list")
	}

	want := []string{"1.0.210", "1.0", "1"}
	if len(list.Items) != len(want) {
		t.Fatalf("items = %+v, want %v", list.Items, want)
	}
	for i, w := range want {
		if list.Items[i].Label != w {
			t.Errorf("item %d = %q, want %q", i, list.Items[i].Label, w)
		}
	}
}

func TestCompletion_Features(t *testing.T) {
	s := testServer(t)
	openTestDoc(t, s)

	// Inside "derive" in serde's feature list.
	list, err := s.completion(context.Background(), &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
			Position:     protocol.Position{Line: 4, Character: 43},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if list == nil {
		t.Fatal("expected a completion list")
	}

	// derive is already enabled; rc and std remain.
	labels := make(map[string]bool)
	for _, item := range list.Items {
		labels[item.Label] = true
	}
	if !labels["rc"] || !labels["std"] || labels["derive"] {
		t.Errorf("wrong feature candidates: %+v", list.Items)
	}
}

func TestCompletion_UnknownCrateIsEmpty(t *testing.T) {
	s := testServer(t)
	doc := openTestDoc(t, s)

	dep := doc.Deps[1]
	if dep.Name.Value != "unknown-crate-xyz" || dep.Version == nil {
		t.Fatalf("unexpected test manifest layout: %+v", dep)
	}

	list, err := s.completion(context.Background(), &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
			Position: protocol.Position{
				Line:      dep.Version.Range.Start.Line,
				Character: dep.Version.Range.Start.Character + 1,
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || len(list.Items) != 0 {
		t.Errorf("expected an empty list, got %+v", list)
	}
}

func TestHover_Name(t *testing.T) {
	s := testServer(t)
	openTestDoc(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Resolve once so the description fetch gets a chance to land.
	if _, err := s.cache.Resolve(ctx, "serde"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		meta, err := s.cache.Resolve(ctx, "serde")
		if err != nil {
			t.Fatal(err)
		}
		if meta.DescriptionState != registry.DescriptionPending {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("description never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hover, err := s.hover(ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
			Position:     protocol.Position{Line: 4, Character: 2},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if hover == nil {
		t.Fatal("expected hover content")
	}
	text := hover.Contents.Value
	if !strings.Contains(text, "serde: 1.0.210") {
		t.Errorf("hover missing header: %q", text)
	}
	if !strings.Contains(text, "A serialization framework") {
		t.Errorf("hover missing description: %q", text)
	}
	if !strings.Contains(text, "derive") {
		t.Errorf("hover missing features: %q", text)
	}
}

func TestHover_Feature(t *testing.T) {
	s := testServer(t)
	openTestDoc(t, s)

	hover, err := s.hover(context.Background(), &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
			Position:     protocol.Position{Line: 4, Character: 43},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if hover == nil {
		t.Fatal("expected hover content")
	}
	if !strings.Contains(hover.Contents.Value, "derive") ||
		!strings.Contains(hover.Contents.Value, "serde_derive") {
		t.Errorf("feature hover = %q", hover.Contents.Value)
	}
}

func TestHover_UnknownCrateIsSilent(t *testing.T) {
	s := testServer(t)
	doc := openTestDoc(t, s)

	dep := doc.Deps[1]
	hover, err := s.hover(context.Background(), &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
			Position:     toProtocolRange(dep.Name.Range).Start,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if hover != nil {
		t.Errorf("expected silence, got %+v", hover)
	}
}

func TestDefinition(t *testing.T) {
	s := testServer(t)
	openTestDoc(t, s)

	locs, err := s.definition(context.Background(), &protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
			Position:     protocol.Position{Line: 4, Character: 2},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 || string(locs[0].URI) != "https://docs.rs/serde" {
		t.Errorf("locations = %+v", locs)
	}
}

func TestCodeAction(t *testing.T) {
	s := testServer(t)
	doc := openTestDoc(t, s)

	dep := doc.Deps[0]
	actions, err := s.codeAction(context.Background(), &protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		Range: protocol.Range{
			Start: toProtocolRange(dep.Version.Range).Start,
			End:   toProtocolRange(dep.Version.Range).Start,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 {
		t.Fatalf("actions = %+v", actions)
	}

	action := actions[0]
	if action.Kind != protocol.QuickFix {
		t.Errorf("kind = %v", action.Kind)
	}
	edits := action.Edit.Changes[testURI]
	if len(edits) != 1 || edits[0].NewText != `"1.0.210"` {
		t.Errorf("edits = %+v", edits)
	}
}

func TestCodeAction_UpToDateHasNone(t *testing.T) {
	s := testServer(t)
	doc := s.docs.Open(testURI, 1, "[dependencies]\nserde = \"1.0.210\"\n")

	dep := doc.Deps[0]
	actions, err := s.codeAction(context.Background(), &protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		Range: protocol.Range{
			Start: toProtocolRange(dep.Version.Range).Start,
			End:   toProtocolRange(dep.Version.Range).Start,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 0 {
		t.Errorf("expected no actions, got %+v", actions)
	}
}
