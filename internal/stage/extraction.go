package stage

import (
	"context"
	"errors"
	"time"

	"litsieve/internal/config"
	"litsieve/internal/corpus"
	"litsieve/internal/invoke"
	"litsieve/internal/normalize"
)

// ExpectedFields are the structured values pulled from each included article.
var ExpectedFields = []string{
	"study_objective",
	"methodology",
	"main_results",
	"conclusions_limitations",
	"sample_data",
}

// ExtractionStage pulls structured fields from triage-included articles.
type ExtractionStage struct {
	store  *corpus.Store
	engine Invoker
	params config.Inference
	runID  string
}

// NewExtractionStage wires the extraction stage.
func NewExtractionStage(cfg *config.Config, store *corpus.Store, engine Invoker, runID string) *ExtractionStage {
	return &ExtractionStage{
		store:  store,
		engine: engine,
		params: cfg.StageInference("extraction"),
		runID:  runID,
	}
}

func (s *ExtractionStage) Name() string { return "extraction" }

func (s *ExtractionStage) Articles(ctx context.Context) ([]corpus.Article, error) {
	return s.store.IncludedArticles(ctx)
}

// extractionRecord is one line of the extraction results file.
type extractionRecord struct {
	ArticleID  string            `json:"article_id"`
	Fields     map[string]string `json:"fields"`
	ParseError bool              `json:"parse_error"`
	Provider   string            `json:"provider"`
	TokensUsed int               `json:"tokens_used"`
	LatencyMS  float64           `json:"latency_ms"`
	Timestamp  string            `json:"timestamp"`
}

func (s *ExtractionStage) Process(ctx context.Context, article corpus.Article) (any, error) {
	result, err := s.engine.Invoke(ctx, invoke.Request{
		Prompt:         extractionPrompt(article.Title, article.Abstract),
		Params:         inferenceParams(s.params),
		Module:         s.Name(),
		ArticleID:      article.ID,
		Mode:           normalize.ModeFields,
		ExpectedFields: ExpectedFields,
		CacheEligible:  true,
	})

	// A response that never parses as JSON still yields a stored row, so
	// the run can finish and the raw text can be reviewed later.
	var parseErr *normalize.ParseError
	stored := corpus.ExtractionResult{
		ArticleID: article.ID,
		RunID:     s.runID,
		CreatedAt: time.Now().UTC(),
	}
	switch {
	case err == nil:
		fields, ok := result.Payload.(normalize.Fields)
		if !ok {
			return nil, errors.New("unexpected payload for fields mode")
		}
		stored.Fields = fields.Values
		stored.Provider = result.Provider
		stored.TokensUsed = result.TokensIn + result.TokensOut
		stored.LatencyMS = float64(result.Latency.Milliseconds())
	case errors.As(err, &parseErr):
		stored.Fields = map[string]string{"raw": parseErr.Raw}
		stored.ParseError = true
	default:
		return nil, err
	}

	if err := s.store.SaveExtractionResult(context.WithoutCancel(ctx), stored); err != nil {
		return nil, err
	}

	return extractionRecord{
		ArticleID:  stored.ArticleID,
		Fields:     stored.Fields,
		ParseError: stored.ParseError,
		Provider:   stored.Provider,
		TokensUsed: stored.TokensUsed,
		LatencyMS:  stored.LatencyMS,
		Timestamp:  stored.CreatedAt.Format(time.RFC3339Nano),
	}, nil
}
