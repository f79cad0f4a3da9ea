package corpus_test

import (
	"context"
	"testing"

	"litsieve/internal/corpus"
	"litsieve/internal/testsupport"
)

func TestStoreUpsertAndGetArticle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	article := corpus.Article{
		ID:       "arxiv_2401.00001",
		Title:    "Adaptive Tutoring Systems",
		Abstract: "An abstract describing an adaptive tutoring system study in some detail.",
		Year:     2024,
		Source:   "arxiv",
	}
	if err := store.UpsertArticle(ctx, article); err != nil {
		t.Fatalf("UpsertArticle: %v", err)
	}

	got, err := store.GetArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if got == nil {
		t.Fatal("expected article, got nil")
	}
	if got.Title != article.Title || got.Year != article.Year || got.Source != article.Source {
		t.Fatalf("unexpected article: %+v", got)
	}
	if got.ImportedAt.IsZero() {
		t.Fatal("expected imported_at to be set")
	}

	// Upsert with the same ID updates in place.
	article.Title = "Adaptive Tutoring Systems, Revised"
	if err := store.UpsertArticle(ctx, article); err != nil {
		t.Fatalf("UpsertArticle update: %v", err)
	}
	count, err := store.CountArticles(ctx)
	if err != nil {
		t.Fatalf("CountArticles: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 article after upsert, got %d", count)
	}
	got, err = store.GetArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("GetArticle after update: %v", err)
	}
	if got.Title != "Adaptive Tutoring Systems, Revised" {
		t.Fatalf("expected updated title, got %q", got.Title)
	}
}

func TestStoreRejectsEmptyArticle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.UpsertArticle(ctx, corpus.Article{Title: "no id"}); err == nil {
		t.Fatal("expected error for article without id")
	}
	if err := store.UpsertArticle(ctx, corpus.Article{ID: "x"}); err == nil {
		t.Fatal("expected error for article without title")
	}
}

func TestStoreGetArticleMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	got, err := store.GetArticle(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing article, got %+v", got)
	}
}

func TestStoreTriageRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewArticle(t, store, "a1", "Included study")
	testsupport.NewArticle(t, store, "a2", "Excluded study")
	testsupport.NewArticle(t, store, "a3", "Untriaged study")

	saves := []corpus.TriageResult{
		{ArticleID: "a1", RunID: "run-1", Decision: "YES", Justification: "matches criteria", Confidence: 1.0, Provider: "groq"},
		{ArticleID: "a2", RunID: "run-1", Decision: "NO", Justification: "off topic", Confidence: 0.8, Provider: "groq"},
	}
	for _, result := range saves {
		if err := store.SaveTriageResult(ctx, result); err != nil {
			t.Fatalf("SaveTriageResult(%s): %v", result.ArticleID, err)
		}
	}

	got, err := store.GetTriageResult(ctx, "a1")
	if err != nil {
		t.Fatalf("GetTriageResult: %v", err)
	}
	if got == nil || got.Decision != "YES" || got.Confidence != 1.0 {
		t.Fatalf("unexpected triage result: %+v", got)
	}

	included, err := store.IncludedArticles(ctx)
	if err != nil {
		t.Fatalf("IncludedArticles: %v", err)
	}
	if len(included) != 1 || included[0].ID != "a1" {
		t.Fatalf("expected only a1 included, got %+v", included)
	}

	counts, err := store.TriageCounts(ctx)
	if err != nil {
		t.Fatalf("TriageCounts: %v", err)
	}
	if counts["YES"] != 1 || counts["NO"] != 1 {
		t.Fatalf("unexpected triage counts: %v", counts)
	}
}

func TestStoreExtractionRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewArticle(t, store, "a1", "Extraction target")

	result := corpus.ExtractionResult{
		ArticleID: "a1",
		RunID:     "run-2",
		Fields: map[string]string{
			"population":   "undergraduate students",
			"intervention": "NOT MENTIONED",
		},
		Provider:  "together",
		LatencyMS: 812.5,
	}
	if err := store.SaveExtractionResult(ctx, result); err != nil {
		t.Fatalf("SaveExtractionResult: %v", err)
	}

	got, err := store.GetExtractionResult(ctx, "a1")
	if err != nil {
		t.Fatalf("GetExtractionResult: %v", err)
	}
	if got == nil {
		t.Fatal("expected extraction result, got nil")
	}
	if got.Fields["population"] != "undergraduate students" {
		t.Fatalf("unexpected fields: %v", got.Fields)
	}
	if got.Fields["intervention"] != "NOT MENTIONED" {
		t.Fatalf("expected sentinel preserved, got %q", got.Fields["intervention"])
	}
	if got.ParseError {
		t.Fatal("expected parse_error false")
	}
}

func TestStoreSummaryRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewArticle(t, store, "a1", "Summary target")

	summary := corpus.Summary{
		ArticleID: "a1",
		RunID:     "run-3",
		Problem:   "students disengage from static material",
		Solution:  "an adaptive tutoring loop",
		Findings:  "engagement rose in the treatment group",
		Provider:  "groq",
	}
	if err := store.SaveSummary(ctx, summary); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	got, err := store.GetSummary(ctx, "a1")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if got == nil || got.Problem != summary.Problem || got.Findings != summary.Findings {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestStoreCrossValPerRunVerdicts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewArticle(t, store, "a1", "Crossval target")

	for _, runName := range []string{"baseline", "synonym", "repeat"} {
		err := store.SaveCrossValResult(ctx, corpus.CrossValResult{
			ArticleID: "a1",
			RunName:   runName,
			RunID:     "run-4",
			Decision:  "YES",
			Provider:  "together",
		})
		if err != nil {
			t.Fatalf("SaveCrossValResult(%s): %v", runName, err)
		}
	}

	// Re-saving the same (article, run name) pair replaces the verdict.
	err := store.SaveCrossValResult(ctx, corpus.CrossValResult{
		ArticleID: "a1",
		RunName:   "synonym",
		RunID:     "run-5",
		Decision:  "NO",
		Provider:  "together",
	})
	if err != nil {
		t.Fatalf("SaveCrossValResult replace: %v", err)
	}

	results, err := store.CrossValResults(ctx, "synonym")
	if err != nil {
		t.Fatalf("CrossValResults: %v", err)
	}
	if len(results) != 1 || results[0].Decision != "NO" || results[0].RunID != "run-5" {
		t.Fatalf("unexpected synonym results: %+v", results)
	}

	baseline, err := store.CrossValResults(ctx, "baseline")
	if err != nil {
		t.Fatalf("CrossValResults baseline: %v", err)
	}
	if len(baseline) != 1 || baseline[0].Decision != "YES" {
		t.Fatalf("unexpected baseline results: %+v", baseline)
	}
}

func TestStoreSchemaPersistsAcrossReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewArticle(t, store, "a1", "Persistent study")
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := corpus.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetArticle(ctx, "a1")
	if err != nil {
		t.Fatalf("GetArticle after reopen: %v", err)
	}
	if got == nil {
		t.Fatal("expected article to survive reopen")
	}
}
