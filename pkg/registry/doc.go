// Package registry resolves crate names to authoritative version and
// description metadata from crates.io.
//
// # Sources
//
// Two remote sources with different characteristics are combined:
//
//   - The sparse index (https://index.crates.io): one static file per crate
//     listing every published version as newline-delimited JSON. No rate
//     limit; fetched by [IndexClient].
//   - The registry API (https://crates.io/api/v1): per-crate metadata
//     including the human-readable description. Subject to a strict
//     1-request-per-second policy; fetched by [APIClient] behind a
//     process-wide [Limiter].
//
// # Caching
//
// [Cache] memoizes resolved metadata per crate name for the life of the
// process. Concurrent requests for the same crate join a single in-flight
// fetch, so editor request storms (diagnostics, hover and completion firing
// on the same keystroke) translate to at most one index fetch and one
// description fetch per crate. Published versions are treated as immutable,
// so entries never expire within a session.
//
// # Errors
//
// Failures are sentinel-based: [ErrNotFound] for crates absent from a
// source, [ErrNetwork] for transport failures and 5xx responses (retried
// with backoff), [ErrMalformed] for bodies with no parsable records, and
// [ErrNoUsableVersion] when every published version is yanked. No failure
// for one crate affects any other crate.
package registry
