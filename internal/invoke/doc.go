// Package invoke composes the cache, rate limiter, provider router, retry
// policy, normalizer, and audit log into a single operation: given a request,
// produce a normalized completion or a typed error. One Engine instance owns
// the router state for exactly one pipeline run.
package invoke
