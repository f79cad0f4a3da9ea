// Package llm speaks the OpenAI-compatible chat-completion protocol to a
// single provider endpoint and classifies failures into the taxonomy the
// invocation engine's retry and fallback policy is built on.
package llm
