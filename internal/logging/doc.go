// Package logging wires slog handlers and shared attribute helpers for the
// pipeline. Console output is used for interactive runs; JSON output is used
// when log lines are consumed by external tooling.
package logging
