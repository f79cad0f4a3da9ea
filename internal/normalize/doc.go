// Package normalize converts free-form model output into the structured shape
// each pipeline stage expects. Models drift on formatting, so every mode
// tolerates the common quirks (stray punctuation, code fences, partial JSON)
// before giving up with a ParseError that preserves the raw text.
package normalize
