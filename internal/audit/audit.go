// Package audit keeps the append-only record of every provider attempt. The
// log is the single source of truth for reconstructing a run: one JSON line
// per attempt, written in issuance order, never rewritten or truncated.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Outcome classifies what one attempt produced.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomeCacheHit Outcome = "cache_hit"
)

// Record is one immutable attempt entry.
type Record struct {
	Timestamp   string  `json:"timestamp"`
	RunID       string  `json:"run_id,omitempty"`
	Module      string  `json:"module"`
	ArticleID   string  `json:"article_id"`
	Provider    string  `json:"provider"`
	PromptHash  string  `json:"prompt_hash"`
	Attempt     int     `json:"attempt"`
	Outcome     Outcome `json:"outcome"`
	Error       string  `json:"error,omitempty"`
	RawResponse string  `json:"raw_response,omitempty"`
	LatencyMS   float64 `json:"latency_ms"`
	TokensIn    int     `json:"tokens_in"`
	TokensOut   int     `json:"tokens_out"`
	CacheHit    bool    `json:"cache_hit,omitempty"`
}

// Logger appends records to a JSONL file. Writes are buffered and flushed per
// record so a crash loses at most the record being written, never a committed
// one.
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	now    func() time.Time
}

// Open creates or appends to the audit log at path.
func Open(path string) (*Logger, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Logger{
		file:   file,
		writer: bufio.NewWriter(file),
		now:    time.Now,
	}, nil
}

// Log appends one record. The timestamp is stamped here unless the caller set
// one already.
func (l *Logger) Log(rec Record) error {
	if l == nil {
		return nil
	}
	if rec.Timestamp == "" {
		rec.Timestamp = l.now().UTC().Format(time.RFC3339Nano)
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.writer.Write(encoded); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	if err := l.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("flush audit record: %w", err)
	}
	return nil
}

// Close flushes buffered records and closes the file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("flush audit log: %w", err)
	}
	return l.file.Close()
}
