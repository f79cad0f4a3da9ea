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

// Variant selects one cross-validation prompt variation.
type Variant string

const (
	// VariantBaseline repeats triage with the original criteria.
	VariantBaseline Variant = "baseline"
	// VariantSynonym rewords the criteria with synonyms.
	VariantSynonym Variant = "synonym"
	// VariantInverted presents the abstract before the title.
	VariantInverted Variant = "inverted"
)

// Variants lists the cross-validation runs in execution order.
var Variants = []Variant{VariantBaseline, VariantSynonym, VariantInverted}

// CrossValStage re-screens the whole corpus with one prompt variation. The
// cache stays out of the loop so every run reflects live model behavior.
type CrossValStage struct {
	store    *corpus.Store
	engine   Invoker
	variant  Variant
	criteria []string
	params   config.Inference
	runID    string
}

// NewCrossValStage wires one cross-validation run.
func NewCrossValStage(cfg *config.Config, store *corpus.Store, engine Invoker, variant Variant, runID string) (*CrossValStage, error) {
	criteria := cfg.Triage.Criteria
	if variant == VariantSynonym {
		criteria = cfg.CrossValidation.SynonymCriteria
	}
	switch variant {
	case VariantBaseline, VariantSynonym, VariantInverted:
	default:
		return nil, fmt.Errorf("unknown cross-validation variant %q", variant)
	}
	return &CrossValStage{
		store:    store,
		engine:   engine,
		variant:  variant,
		criteria: criteria,
		params:   cfg.StageInference("triage"),
		runID:    runID,
	}, nil
}

func (s *CrossValStage) Name() string { return "crossval_" + string(s.variant) }

func (s *CrossValStage) Articles(ctx context.Context) ([]corpus.Article, error) {
	return s.store.ListArticles(ctx)
}

func (s *CrossValStage) prompt(article corpus.Article) string {
	if s.variant == VariantInverted {
		return invertedTriagePrompt(s.criteria, article.Title, article.Abstract)
	}
	return triagePrompt(s.criteria, article.Title, article.Abstract)
}

// crossValRecord is one line of a cross-validation results file.
type crossValRecord struct {
	ArticleID     string  `json:"article_id"`
	Run           string  `json:"run"`
	Decision      string  `json:"decision"`
	Justification string  `json:"justification"`
	Confidence    float64 `json:"confidence"`
	Provider      string  `json:"provider"`
	Timestamp     string  `json:"timestamp"`
}

func (s *CrossValStage) Process(ctx context.Context, article corpus.Article) (any, error) {
	result, err := s.engine.Invoke(ctx, invoke.Request{
		Prompt:    s.prompt(article),
		Params:    inferenceParams(s.params),
		Module:    s.Name(),
		ArticleID: article.ID,
		Mode:      normalize.ModeDecision,
	})
	if err != nil {
		return nil, err
	}

	decision, ok := result.Payload.(normalize.Decision)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for decision mode", result.Payload)
	}

	now := time.Now().UTC()
	stored := corpus.CrossValResult{
		ArticleID:     article.ID,
		RunName:       string(s.variant),
		RunID:         s.runID,
		Decision:      decision.Verdict,
		Justification: decision.Justification,
		Confidence:    decision.Confidence,
		Provider:      result.Provider,
		CreatedAt:     now,
	}
	if err := s.store.SaveCrossValResult(context.WithoutCancel(ctx), stored); err != nil {
		return nil, err
	}

	return crossValRecord{
		ArticleID:     stored.ArticleID,
		Run:           stored.RunName,
		Decision:      stored.Decision,
		Justification: stored.Justification,
		Confidence:    stored.Confidence,
		Provider:      stored.Provider,
		Timestamp:     now.Format(time.RFC3339Nano),
	}, nil
}
