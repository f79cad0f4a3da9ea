package testsupport

import (
	"context"
	"testing"

	"litsieve/internal/config"
	"litsieve/internal/corpus"
)

// MustOpenStore opens a corpus.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *corpus.Store {
	t.Helper()

	store, err := corpus.Open(cfg)
	if err != nil {
		t.Fatalf("corpus.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewArticle inserts an article for tests using the provided store.
func NewArticle(t testing.TB, store *corpus.Store, id, title string) corpus.Article {
	t.Helper()

	article := corpus.Article{
		ID:       id,
		Title:    title,
		Abstract: "An abstract long enough to pass the corpus import length filter, used for tests.",
		Year:     2024,
		Source:   "test",
	}
	if err := store.UpsertArticle(context.Background(), article); err != nil {
		t.Fatalf("store.UpsertArticle: %v", err)
	}
	return article
}
