// Package stage hosts the per-article pipeline stages and the runner that
// drives them. A run takes the file lock, walks the stage's article list
// sequentially, and records every outcome twice: structured rows in the
// corpus store and an append-only JSONL file under the output directory.
// One article failing marks that article and moves on; only cancellation
// stops the loop early.
package stage
