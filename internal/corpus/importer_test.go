package corpus_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"litsieve/internal/logging"
	"litsieve/internal/testsupport"
)

const longAbstract = "A sufficiently long abstract describing the study design, its participants, and the outcomes that were measured over the intervention period."

func writeCorpusCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write corpus csv: %v", err)
	}
	return path
}

func TestImportCSV(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	csvBody := "id,title,abstract,authors,year,doi,source,url\n" +
		"s2_abc,First Study,\"" + longAbstract + "\",A. Author,2023,10.1/x,semantic_scholar,https://example.org/1\n" +
		"arxiv_2401.1,Second Study,\"" + longAbstract + "\",B. Author,2024,,arxiv,https://example.org/2\n"
	path := writeCorpusCSV(t, csvBody)

	summary, err := store.ImportCSV(ctx, path, logging.NewNop())
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if summary.Imported != 2 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	articles, err := store.ListArticles(ctx)
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[0].ID != "arxiv_2401.1" || articles[0].Year != 2024 || articles[0].Source != "arxiv" {
		t.Fatalf("unexpected first article: %+v", articles[0])
	}
}

func TestImportCSVSkipsInvalidRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	csvBody := "id,title,abstract,year,source\n" +
		"ok_1,Valid Study,\"" + longAbstract + "\",2023,arxiv\n" +
		",Missing ID,\"" + longAbstract + "\",2023,arxiv\n" +
		"short_1,Short Abstract,tiny,2023,arxiv\n"
	path := writeCorpusCSV(t, csvBody)

	summary, err := store.ImportCSV(ctx, path, logging.NewNop())
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if summary.Imported != 1 || summary.Skipped != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestImportCSVRequiresIDColumn(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	path := writeCorpusCSV(t, "title,abstract\nNo IDs Here,\""+longAbstract+"\"\n")
	if _, err := store.ImportCSV(context.Background(), path, logging.NewNop()); err == nil {
		t.Fatal("expected error for missing id column")
	}
}

func TestImportCSVReimportUpdates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := writeCorpusCSV(t, "id,title,abstract\nok_1,Original Title,\""+longAbstract+"\"\n")
	if _, err := store.ImportCSV(ctx, first, logging.NewNop()); err != nil {
		t.Fatalf("first import: %v", err)
	}

	second := writeCorpusCSV(t, "id,title,abstract\nok_1,Revised Title,\""+longAbstract+"\"\n")
	if _, err := store.ImportCSV(ctx, second, logging.NewNop()); err != nil {
		t.Fatalf("second import: %v", err)
	}

	count, err := store.CountArticles(ctx)
	if err != nil {
		t.Fatalf("CountArticles: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected reimport to update in place, got %d articles", count)
	}
	article, err := store.GetArticle(ctx, "ok_1")
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if article.Title != "Revised Title" {
		t.Fatalf("expected updated title, got %q", article.Title)
	}
}
