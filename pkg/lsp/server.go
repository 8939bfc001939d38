package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/matzehuels/cratesls/pkg/buildinfo"
	"github.com/matzehuels/cratesls/pkg/manifest"
	"github.com/matzehuels/cratesls/pkg/registry"
	"github.com/matzehuels/cratesls/pkg/versions"
)

const (
	serverName = "cratesls"

	// docsURL is where goto-definition on a crate name points. The target is
	// an external page; clients open it in a browser.
	docsURL = "https://docs.rs"

	// publishTimeout bounds one diagnostics pass, including the registry
	// resolutions it waits for.
	publishTimeout = 30 * time.Second
)

// Server is the LSP frontend. It owns the open-document store and reads
// everything else through the shared metadata cache.
type Server struct {
	cache *registry.Cache
	docs  *Store
	log   *log.Logger

	conn   jsonrpc2.Conn
	notify func(ctx context.Context, method string, params interface{}) error
}

// NewServer wires a server to its metadata cache. Late-arriving cache data
// (descriptions) triggers a diagnostics republish for every open document.
func NewServer(cache *registry.Cache, logger *log.Logger) *Server {
	s := &Server{
		cache:  cache,
		docs:   NewStore(),
		log:    logger,
		notify: func(context.Context, string, interface{}) error { return nil },
	}
	cache.SetOnUpdate(func(crate string) {
		s.log.Debug("cache updated, republishing", "crate", crate)
		s.publishAll()
	})
	return s
}

// Run serves LSP over rwc until the client disconnects or ctx is
// cancelled. Content-Length framing, as editors expect over stdio.
func (s *Server) Run(ctx context.Context, rwc io.ReadWriteCloser) error {
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))
	s.conn = conn
	s.notify = conn.Notify

	conn.Go(ctx, s.handle)

	select {
	case <-ctx.Done():
		conn.Close()
		<-conn.Done()
		return ctx.Err()
	case <-conn.Done():
		return conn.Err()
	}
}

// handle dispatches one incoming message. Document-sync notifications are
// applied synchronously so their order is preserved; requests answer from
// their own goroutine so a slow registry fetch never blocks the read loop.
func (s *Server) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	switch req.Method() {
	case protocol.MethodInitialize:
		return reply(ctx, s.initialize(), nil)

	case protocol.MethodInitialized:
		return reply(ctx, nil, nil)

	case protocol.MethodShutdown:
		return reply(ctx, nil, nil)

	case protocol.MethodExit:
		err := reply(ctx, nil, nil)
		s.conn.Close()
		return err

	case protocol.MethodTextDocumentDidOpen:
		var params protocol.DidOpenTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		doc := s.docs.Open(params.TextDocument.URI, params.TextDocument.Version, params.TextDocument.Text)
		s.log.Debug("opened", "uri", doc.URI, "deps", len(doc.Deps))
		go s.publish(doc)
		return reply(ctx, nil, nil)

	case protocol.MethodTextDocumentDidChange:
		var params protocol.DidChangeTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		doc := s.docs.Change(params.TextDocument.URI, params.TextDocument.Version, params.ContentChanges)
		if doc != nil {
			go s.publish(doc)
		}
		return reply(ctx, nil, nil)

	case protocol.MethodTextDocumentDidClose:
		var params protocol.DidCloseTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		s.docs.Close(params.TextDocument.URI)
		return reply(ctx, nil, nil)

	case protocol.MethodTextDocumentCompletion:
		var params protocol.CompletionParams
		if err := unmarshalParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		go func() {
			result, err := s.completion(ctx, &params)
			_ = reply(ctx, result, err)
		}()
		return nil

	case protocol.MethodTextDocumentHover:
		var params protocol.HoverParams
		if err := unmarshalParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		go func() {
			result, err := s.hover(ctx, &params)
			_ = reply(ctx, result, err)
		}()
		return nil

	case protocol.MethodTextDocumentDefinition:
		var params protocol.DefinitionParams
		if err := unmarshalParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		go func() {
			result, err := s.definition(ctx, &params)
			_ = reply(ctx, result, err)
		}()
		return nil

	case protocol.MethodTextDocumentCodeAction:
		var params protocol.CodeActionParams
		if err := unmarshalParams(req, &params); err != nil {
			return reply(ctx, nil, err)
		}
		go func() {
			result, err := s.codeAction(ctx, &params)
			_ = reply(ctx, result, err)
		}()
		return nil

	default:
		return reply(ctx, nil, jsonrpc2.ErrMethodNotFound)
	}
}

func unmarshalParams(req jsonrpc2.Request, v interface{}) error {
	if err := json.Unmarshal(req.Params(), v); err != nil {
		return fmt.Errorf("%s: %w", jsonrpc2.ErrParse, err)
	}
	return nil
}

func (s *Server) initialize() *protocol.InitializeResult {
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindIncremental,
			},
			// Completion inside version and feature strings; typing the
			// opening quote triggers it.
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{`"`},
			},
			HoverProvider:      true,
			DefinitionProvider: true,
			CodeActionProvider: true,
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    serverName,
			Version: buildinfo.Version,
		},
	}
}

// publish computes and pushes the diagnostics of one document snapshot.
// Runs detached from the triggering notification.
func (s *Server) publish(doc *Document) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	diags := s.diagnosticsFor(ctx, doc)

	// A slower pass must not overwrite the diagnostics of a newer snapshot.
	if current, ok := s.docs.Get(doc.URI); !ok || current.Version != doc.Version {
		return
	}

	err := s.notify(ctx, protocol.MethodTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Version:     uint32(doc.Version),
		Diagnostics: diags,
	})
	if err != nil {
		s.log.Error("publishing diagnostics failed", "uri", doc.URI, "err", err)
	}
}

func (s *Server) publishAll() {
	for _, doc := range s.docs.All() {
		go s.publish(doc)
	}
}

func (s *Server) completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	doc, ok := s.docs.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	pos := toManifestPosition(params.Position)

	for i := range doc.Deps {
		dep := &doc.Deps[i]
		if dep.Kind != manifest.SourceRegistry {
			continue
		}

		inVersion := dep.Version != nil && dep.Version.Range.Contains(pos)
		inFeatures := featureAt(dep, pos) != nil ||
			(dep.FeaturesRange != nil && dep.FeaturesRange.Contains(pos))
		if !inVersion && !inFeatures {
			continue
		}

		meta, err := s.cache.Resolve(ctx, dep.RegistryName())
		if err != nil {
			return &protocol.CompletionList{Items: []protocol.CompletionItem{}}, nil
		}
		latest, ok := meta.Latest()
		if !ok {
			return &protocol.CompletionList{Items: []protocol.CompletionItem{}}, nil
		}

		var items []protocol.CompletionItem
		if inVersion {
			items = versionItems(latest)
		} else {
			items = featureItems(latest, dep.EnabledFeatures())
		}
		return &protocol.CompletionList{Items: items}, nil
	}
	return nil, nil
}

func (s *Server) hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.docs.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	pos := toManifestPosition(params.Position)

	for i := range doc.Deps {
		dep := &doc.Deps[i]
		if dep.Kind != manifest.SourceRegistry {
			continue
		}

		if dep.Name.Range.Contains(pos) {
			meta, err := s.cache.Resolve(ctx, dep.RegistryName())
			if err != nil {
				return nil, nil
			}
			return &protocol.Hover{
				Contents: protocol.MarkupContent{Kind: protocol.PlainText, Value: nameHover(meta)},
			}, nil
		}

		if f := featureAt(dep, pos); f != nil {
			meta, err := s.cache.Resolve(ctx, dep.RegistryName())
			if err != nil {
				return nil, nil
			}
			latest, ok := meta.Latest()
			if !ok {
				return nil, nil
			}
			feature, ok := latest.Feature(f.Value)
			if !ok {
				return nil, nil
			}
			return &protocol.Hover{
				Contents: protocol.MarkupContent{Kind: protocol.PlainText, Value: featureHover(feature)},
			}, nil
		}
	}
	return nil, nil
}

// definition resolves a crate name to its documentation page. The returned
// location is an external URI; there is no source to jump to for a
// registry dependency.
func (s *Server) definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	doc, ok := s.docs.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	pos := toManifestPosition(params.Position)

	for i := range doc.Deps {
		dep := &doc.Deps[i]
		if dep.Kind != manifest.SourceRegistry || !dep.Name.Range.Contains(pos) {
			continue
		}
		name := dep.RegistryName()
		if !s.cache.Known(ctx, name) {
			return nil, nil
		}
		return []protocol.Location{
			{URI: uri.URI(fmt.Sprintf("%s/%s", docsURL, name))},
		}, nil
	}
	return nil, nil
}

// codeAction offers a quickfix rewriting an outdated version requirement
// to the latest published version.
func (s *Server) codeAction(ctx context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	doc, ok := s.docs.Get(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	start := toManifestPosition(params.Range.Start)
	end := toManifestPosition(params.Range.End)

	for i := range doc.Deps {
		dep := &doc.Deps[i]
		if dep.Kind != manifest.SourceRegistry || dep.Version == nil {
			continue
		}
		if !dep.Version.Range.Contains(start) && !dep.Version.Range.Contains(end) {
			continue
		}

		meta, err := s.cache.Resolve(ctx, dep.RegistryName())
		if err != nil {
			return nil, nil
		}
		latest, ok := meta.Latest()
		if !ok {
			return nil, nil
		}
		if !versions.IsOutdated(dep.Version.Value, latest.Semver) {
			return nil, nil
		}

		newText := fmt.Sprintf("%q", latest.Semver.Original())
		return []protocol.CodeAction{{
			Title: fmt.Sprintf("Update %s to %s", dep.Name.Value, latest.Semver.Original()),
			Kind:  protocol.QuickFix,
			Edit: &protocol.WorkspaceEdit{
				Changes: map[uri.URI][]protocol.TextEdit{
					doc.URI: {{Range: toProtocolRange(dep.Version.Range), NewText: newText}},
				},
			},
		}}, nil
	}
	return nil, nil
}

func featureAt(dep *manifest.Dependency, pos manifest.Position) *manifest.Span[string] {
	for i := range dep.Features {
		if dep.Features[i].Range.Contains(pos) {
			return &dep.Features[i]
		}
	}
	return nil
}
