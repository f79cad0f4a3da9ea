package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/flock"

	"litsieve/internal/config"
	"litsieve/internal/corpus"
	"litsieve/internal/invoke"
	"litsieve/internal/logging"
)

// Invoker is the engine surface a stage needs.
type Invoker interface {
	Invoke(ctx context.Context, req invoke.Request) (invoke.Result, error)
}

// Stage processes articles one at a time.
type Stage interface {
	// Name labels log lines and the results file.
	Name() string
	// Articles selects which articles this stage operates on.
	Articles(ctx context.Context) ([]corpus.Article, error)
	// Process handles one article, persists the outcome in the corpus
	// store, and returns the record to append to the results file.
	Process(ctx context.Context, article corpus.Article) (any, error)
}

// Tally summarizes one stage run.
type Tally struct {
	Stage     string
	RunID     string
	Total     int
	Succeeded int
	Failed    int
}

// Runner drives a stage over its article list under the run lock.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	runID  string
}

// NewRunner builds a runner for one pipeline run.
func NewRunner(cfg *config.Config, logger *slog.Logger, runID string) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger, runID: runID}
}

// Run walks the stage's articles sequentially. A failed article is recorded
// and skipped; cancellation stops the loop after the in-flight article and
// returns the partial tally alongside the context error.
func (r *Runner) Run(ctx context.Context, st Stage) (Tally, error) {
	tally := Tally{Stage: st.Name(), RunID: r.runID}

	if err := r.cfg.EnsureDirectories(); err != nil {
		return tally, fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(r.cfg.RunLockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return tally, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return tally, errors.New("another pipeline run is already in progress")
	}
	defer func() { _ = lock.Unlock() }()

	articles, err := st.Articles(ctx)
	if err != nil {
		return tally, fmt.Errorf("select articles: %w", err)
	}
	tally.Total = len(articles)

	results, err := newResultWriter(r.cfg.ResultsPath(st.Name()))
	if err != nil {
		return tally, err
	}
	defer results.Close()

	logger := r.logger.With(
		logging.String(logging.FieldStage, st.Name()),
		logging.String(logging.FieldRunID, r.runID),
	)
	logger.Info("stage started", logging.Int("articles", tally.Total))

	for _, article := range articles {
		if ctx.Err() != nil {
			break
		}

		record, err := st.Process(ctx, article)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			tally.Failed++
			logger.Error("article failed",
				logging.String(logging.FieldArticleID, article.ID), logging.Error(err))
			continue
		}

		if err := results.Append(record); err != nil {
			logger.Warn("results file append failed",
				logging.String(logging.FieldArticleID, article.ID), logging.Error(err))
		}
		tally.Succeeded++
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("stage interrupted",
			logging.Int("succeeded", tally.Succeeded), logging.Int("failed", tally.Failed))
		return tally, err
	}

	logger.Info("stage completed",
		logging.Int("succeeded", tally.Succeeded), logging.Int("failed", tally.Failed))
	return tally, nil
}

// resultWriter appends JSON lines to a stage results file. Records survive an
// interrupted run because every append is flushed by the OS write.
type resultWriter struct {
	file    *os.File
	encoder *json.Encoder
}

func newResultWriter(path string) (*resultWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	return &resultWriter{file: file, encoder: json.NewEncoder(file)}, nil
}

func (w *resultWriter) Append(record any) error {
	if record == nil {
		return nil
	}
	return w.encoder.Encode(record)
}

func (w *resultWriter) Close() error {
	return w.file.Close()
}
