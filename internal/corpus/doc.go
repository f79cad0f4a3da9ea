// Package corpus persists imported articles and per-stage results in SQLite.
// The store is the pipeline's system of record between stages: triage reads
// articles, extraction and summarization read triage decisions, and the
// reporting side reads everything. Writers are the stages; nothing here ever
// mutates another stage's rows.
package corpus
