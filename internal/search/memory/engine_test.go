package memory

import (
	"context"
	"testing"

	"github.com/jasvant6thstreet/distributed-search-elastic/internal/search"
)

func index(t *testing.T, e *Engine, indexName, docID, content string) {
	t.Helper()
	err := e.IndexDocument(context.Background(), indexName, search.Document{
		DocID:    docID,
		TenantID: "acme",
		Content:  content,
	})
	if err != nil {
		t.Fatalf("IndexDocument(%s): %v", docID, err)
	}
}

func TestCreateIndexIdempotent(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	settings := search.IndexSettings{Shards: 5, Replicas: 2, RefreshInterval: "1s"}
	if err := e.CreateIndex(ctx, "idx", settings); err != nil {
		t.Fatalf("first CreateIndex: %v", err)
	}
	if err := e.CreateIndex(ctx, "idx", search.IndexSettings{Shards: 1}); err != nil {
		t.Fatalf("second CreateIndex: %v", err)
	}

	// The original topology survives the second create.
	got, err := e.Settings(ctx, "idx")
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if got != settings {
		t.Errorf("settings = %+v, want %+v", got, settings)
	}
}

func TestSearchRanksByRelevance(t *testing.T) {
	e := NewEngine()
	index(t, e, "idx", "d1", "database systems and database design")
	index(t, e, "idx", "d2", "a database appears once here among many other words entirely")
	index(t, e, "idx", "d3", "nothing relevant at all")

	hits, err := e.Search(context.Background(), "idx", "database", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits.Hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits.Hits))
	}
	if hits.Hits[0].Doc.DocID != "d1" {
		t.Errorf("top hit = %s, want d1 (higher term frequency)", hits.Hits[0].Doc.DocID)
	}
	if hits.Hits[0].Score <= hits.Hits[1].Score {
		t.Errorf("scores not descending: %v then %v", hits.Hits[0].Score, hits.Hits[1].Score)
	}
}

func TestSearchRespectsSize(t *testing.T) {
	e := NewEngine()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		index(t, e, "idx", id, "common term")
	}

	hits, err := e.Search(context.Background(), "idx", "common", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits.Hits) != 3 {
		t.Errorf("got %d hits, want 3", len(hits.Hits))
	}
}

func TestSearchReportsShardCount(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()
	if err := e.CreateIndex(ctx, "idx", search.DefaultIndexSettings()); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	index(t, e, "idx", "d1", "hello world")

	hits, err := e.Search(ctx, "idx", "hello", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits.ShardsQueried != 5 {
		t.Errorf("ShardsQueried = %d, want 5", hits.ShardsQueried)
	}
}

func TestSearchMatchesStemmedForms(t *testing.T) {
	e := NewEngine()
	index(t, e, "idx", "d1", "the fox jumped over fallen logs")

	hits, err := e.Search(context.Background(), "idx", "jump", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits.Hits) != 1 {
		t.Errorf("stemmed query matched %d docs, want 1", len(hits.Hits))
	}
}

func TestReindexReplacesOldTerms(t *testing.T) {
	e := NewEngine()
	index(t, e, "idx", "d1", "original wording")
	index(t, e, "idx", "d1", "replacement text")

	ctx := context.Background()
	hits, err := e.Search(ctx, "idx", "original", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits.Hits) != 0 {
		t.Error("stale terms still searchable after reindex")
	}

	count, err := e.CountDocuments(ctx, "idx")
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d after reindexing the same id, want 1", count)
	}
}

func TestDeleteRemovesFromPostings(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()
	index(t, e, "idx", "d1", "findable content")

	if err := e.DeleteDocument(ctx, "idx", "d1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	hits, err := e.Search(ctx, "idx", "findable", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits.Hits) != 0 {
		t.Error("deleted document still searchable")
	}

	doc, err := e.GetDocument(ctx, "idx", "d1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc != nil {
		t.Error("deleted document still retrievable")
	}
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	e := NewEngine()
	if err := e.DeleteDocument(context.Background(), "idx", "ghost"); err != nil {
		t.Errorf("deleting from a missing index errored: %v", err)
	}
}

func TestGetDocumentMissing(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()
	index(t, e, "idx", "d1", "present")

	doc, err := e.GetDocument(ctx, "idx", "d2")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc != nil {
		t.Error("GetDocument returned a document for an unknown id")
	}
}

func TestBulkIndexCounts(t *testing.T) {
	e := NewEngine()
	docs := []search.BulkDoc{
		{Index: "idx-a", Doc: search.Document{DocID: "1", Content: "alpha"}},
		{Index: "idx-a", Doc: search.Document{DocID: "2", Content: "beta"}},
		{Index: "idx-b", Doc: search.Document{DocID: "3", Content: "gamma"}},
	}
	outcome, err := e.BulkIndex(context.Background(), docs)
	if err != nil {
		t.Fatalf("BulkIndex: %v", err)
	}
	if outcome.Succeeded != 3 || outcome.Failed != 0 {
		t.Errorf("outcome = %+v, want 3/0", outcome)
	}
}

func TestTokenizeDropsStopWordsAndShortWords(t *testing.T) {
	terms := tokenize("The quick brown fox is in a box")
	for _, term := range terms {
		if term == "the" || term == "is" || term == "in" {
			t.Errorf("stop word %q survived tokenization", term)
		}
	}
	if len(terms) == 0 {
		t.Fatal("tokenize returned nothing")
	}
}
