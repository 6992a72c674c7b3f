// Package shared holds code used by several packages that belongs to none
// of them. Today that is testutil: raw batch fixtures and a buffering slog
// handler for asserting on log output.
package shared
