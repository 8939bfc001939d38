// Package lsp serves manifest intelligence over the Language Server
// Protocol: diagnostics, completions, hover and navigation for Cargo.toml
// documents, backed by the registry metadata cache.
//
// The server speaks JSON-RPC with Content-Length framing, usually over
// stdio. Notifications (document sync) are handled in arrival order;
// requests run concurrently, each on its own goroutine, so one slow
// registry fetch never stalls typing.
package lsp
