// Package manifest parses Cargo.toml text into dependency declarations
// with exact source spans. The parser is tolerant: broken entries become
// problems, never errors, so a half-typed manifest still yields every
// dependency that parses.
package manifest
