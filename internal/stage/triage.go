package stage

import (
	"context"
	"fmt"
	"time"

	"litsieve/internal/config"
	"litsieve/internal/corpus"
	"litsieve/internal/invoke"
	"litsieve/internal/normalize"
)

// TriageStage screens every imported article against the inclusion criteria.
type TriageStage struct {
	store    *corpus.Store
	engine   Invoker
	criteria []string
	params   config.Inference
	runID    string
}

// NewTriageStage wires the screening stage.
func NewTriageStage(cfg *config.Config, store *corpus.Store, engine Invoker, runID string) *TriageStage {
	return &TriageStage{
		store:    store,
		engine:   engine,
		criteria: cfg.Triage.Criteria,
		params:   cfg.StageInference("triage"),
		runID:    runID,
	}
}

func (s *TriageStage) Name() string { return "triage" }

func (s *TriageStage) Articles(ctx context.Context) ([]corpus.Article, error) {
	return s.store.ListArticles(ctx)
}

// triageRecord is one line of the triage results file.
type triageRecord struct {
	ArticleID     string  `json:"article_id"`
	Decision      string  `json:"decision"`
	Justification string  `json:"justification"`
	Confidence    float64 `json:"confidence"`
	Provider      string  `json:"provider"`
	TokensUsed    int     `json:"tokens_used"`
	LatencyMS     float64 `json:"latency_ms"`
	Timestamp     string  `json:"timestamp"`
}

func (s *TriageStage) Process(ctx context.Context, article corpus.Article) (any, error) {
	result, err := s.engine.Invoke(ctx, invoke.Request{
		Prompt:        triagePrompt(s.criteria, article.Title, article.Abstract),
		Params:        inferenceParams(s.params),
		Module:        s.Name(),
		ArticleID:     article.ID,
		Mode:          normalize.ModeDecision,
		CacheEligible: true,
	})
	if err != nil {
		return nil, err
	}

	decision, ok := result.Payload.(normalize.Decision)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for decision mode", result.Payload)
	}

	now := time.Now().UTC()
	stored := corpus.TriageResult{
		ArticleID:     article.ID,
		RunID:         s.runID,
		Decision:      decision.Verdict,
		Justification: decision.Justification,
		Confidence:    decision.Confidence,
		Provider:      result.Provider,
		TokensUsed:    result.TokensIn + result.TokensOut,
		LatencyMS:     float64(result.Latency.Milliseconds()),
		CreatedAt:     now,
	}
	// Persist even when the run was cancelled mid-flight; the completed
	// invocation should not be lost.
	if err := s.store.SaveTriageResult(context.WithoutCancel(ctx), stored); err != nil {
		return nil, err
	}

	return triageRecord{
		ArticleID:     stored.ArticleID,
		Decision:      stored.Decision,
		Justification: stored.Justification,
		Confidence:    stored.Confidence,
		Provider:      stored.Provider,
		TokensUsed:    stored.TokensUsed,
		LatencyMS:     stored.LatencyMS,
		Timestamp:     now.Format(time.RFC3339Nano),
	}, nil
}
