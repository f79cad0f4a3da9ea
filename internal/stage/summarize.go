package stage

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"litsieve/internal/config"
	"litsieve/internal/corpus"
	"litsieve/internal/invoke"
	"litsieve/internal/normalize"
)

// SummarizationStage writes a three-part TL;DR for each included article.
type SummarizationStage struct {
	store  *corpus.Store
	engine Invoker
	params config.Inference
	runID  string
}

// NewSummarizationStage wires the summarization stage.
func NewSummarizationStage(cfg *config.Config, store *corpus.Store, engine Invoker, runID string) *SummarizationStage {
	return &SummarizationStage{
		store:  store,
		engine: engine,
		params: cfg.StageInference("summarization"),
		runID:  runID,
	}
}

func (s *SummarizationStage) Name() string { return "summarization" }

func (s *SummarizationStage) Articles(ctx context.Context) ([]corpus.Article, error) {
	return s.store.IncludedArticles(ctx)
}

// summaryRecord is one line of the summarization results file.
type summaryRecord struct {
	ArticleID   string  `json:"article_id"`
	Problem     string  `json:"problem"`
	Solution    string  `json:"solution"`
	Findings    string  `json:"findings"`
	RawResponse string  `json:"raw_response"`
	Provider    string  `json:"provider"`
	TokensUsed  int     `json:"tokens_used"`
	LatencyMS   float64 `json:"latency_ms"`
	Timestamp   string  `json:"timestamp"`
}

func (s *SummarizationStage) Process(ctx context.Context, article corpus.Article) (any, error) {
	result, err := s.engine.Invoke(ctx, invoke.Request{
		Prompt:        summarizationPrompt(article.Title, article.Abstract),
		Params:        inferenceParams(s.params),
		Module:        s.Name(),
		ArticleID:     article.ID,
		Mode:          normalize.ModeSummary,
		CacheEligible: true,
	})
	if err != nil {
		return nil, err
	}

	summary, ok := result.Payload.(normalize.Summary)
	if !ok {
		return nil, errors.New("unexpected payload for summary mode")
	}
	problem, solution, findings := splitSummary(summary.Text)

	stored := corpus.Summary{
		ArticleID:   article.ID,
		RunID:       s.runID,
		Problem:     problem,
		Solution:    solution,
		Findings:    findings,
		RawResponse: summary.Text,
		Provider:    result.Provider,
		TokensUsed:  result.TokensIn + result.TokensOut,
		LatencyMS:   float64(result.Latency.Milliseconds()),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.SaveSummary(context.WithoutCancel(ctx), stored); err != nil {
		return nil, err
	}

	return summaryRecord{
		ArticleID:   stored.ArticleID,
		Problem:     stored.Problem,
		Solution:    stored.Solution,
		Findings:    stored.Findings,
		RawResponse: stored.RawResponse,
		Provider:    stored.Provider,
		TokensUsed:  stored.TokensUsed,
		LatencyMS:   stored.LatencyMS,
		Timestamp:   stored.CreatedAt.Format(time.RFC3339Nano),
	}, nil
}

var numberedItem = regexp.MustCompile(`\d+\.\s*`)

// splitSummary divides a TL;DR into problem, solution and findings. It tries
// numbered list markers first, then non-empty lines. When neither yields
// three parts the whole text lands in problem.
func splitSummary(text string) (problem, solution, findings string) {
	trimmed := strings.TrimSpace(text)

	var parts []string
	for _, part := range numberedItem.Split(trimmed, -1) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) >= 3 {
		return parts[0], parts[1], parts[2]
	}

	parts = parts[:0]
	for _, line := range strings.Split(trimmed, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	if len(parts) >= 3 {
		return parts[0], parts[1], parts[2]
	}

	return trimmed, "", ""
}
