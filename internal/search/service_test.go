package search_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jasvant6thstreet/distributed-search-elastic/internal/search"
	"github.com/jasvant6thstreet/distributed-search-elastic/internal/search/memory"
	apperrors "github.com/jasvant6thstreet/distributed-search-elastic/pkg/errors"
)

func newMemoryService() *search.Service {
	return search.NewService(memory.NewEngine())
}

func TestIndexThenSearch(t *testing.T) {
	svc := newMemoryService()
	ctx := context.Background()

	docID, err := svc.IndexDocument(ctx, search.Document{
		TenantID: "acme",
		Content:  "hello world",
	})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if docID == "" {
		t.Fatal("IndexDocument returned an empty id")
	}

	resp, err := svc.Search(ctx, "acme", "hello", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Results))
	}
	hit := resp.Results[0]
	if hit.DocID != docID {
		t.Errorf("hit DocID = %q, want %q", hit.DocID, docID)
	}
	if hit.Score <= 0 {
		t.Errorf("hit score = %v, want positive", hit.Score)
	}
	if hit.Snippet != "hello world" {
		t.Errorf("snippet = %q, want the original content", hit.Snippet)
	}
	if resp.Stats.ResultsCount != 1 {
		t.Errorf("stats.ResultsCount = %d, want 1", resp.Stats.ResultsCount)
	}
}

func TestSearchMissingIndexReturnsEmpty(t *testing.T) {
	svc := newMemoryService()

	resp, err := svc.Search(context.Background(), "never-wrote", "anything", 10)
	if err != nil {
		t.Fatalf("Search against missing index errored: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("got %d results, want 0", len(resp.Results))
	}
	if resp.Stats != (search.QueryStats{}) {
		t.Errorf("stats = %+v, want zero stats", resp.Stats)
	}
}

func TestSearchTenantIsolation(t *testing.T) {
	svc := newMemoryService()
	ctx := context.Background()

	if _, err := svc.IndexDocument(ctx, search.Document{TenantID: "acme", Content: "secret roadmap"}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	resp, err := svc.Search(ctx, "rival", "roadmap", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("tenant rival sees %d of acme's documents", len(resp.Results))
	}
}

func TestIndexDocumentValidation(t *testing.T) {
	svc := newMemoryService()
	ctx := context.Background()

	if _, err := svc.IndexDocument(ctx, search.Document{TenantID: "acme"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty content: err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.IndexDocument(ctx, search.Document{Content: "x"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty tenant: err = %v, want ErrInvalidInput", err)
	}
}

func TestIndexBatchInvariant(t *testing.T) {
	svc := newMemoryService()

	docs := []search.Document{
		{TenantID: "acme", Content: "first"},
		{TenantID: "acme", Content: "second"},
		{TenantID: "globex", Content: "third"},
	}
	result := svc.IndexBatch(context.Background(), docs)

	if result.Indexed+result.Failed != len(docs) {
		t.Errorf("indexed(%d)+failed(%d) != total(%d)", result.Indexed, result.Failed, len(docs))
	}
	if result.Indexed != len(docs) {
		t.Errorf("indexed = %d, want %d", result.Indexed, len(docs))
	}
}

func TestIndexBatchEmptyInput(t *testing.T) {
	svc := newMemoryService()
	result := svc.IndexBatch(context.Background(), nil)
	if result != (search.BulkResult{}) {
		t.Errorf("empty batch result = %+v, want zero value", result)
	}
}

func TestIndexBatchDegradesOnEngineFailure(t *testing.T) {
	svc := search.NewService(&failingEngine{})

	docs := []search.Document{
		{TenantID: "acme", Content: "first"},
		{TenantID: "acme", Content: "second"},
	}
	result := svc.IndexBatch(context.Background(), docs)

	if result.Indexed != 0 {
		t.Errorf("indexed = %d, want 0", result.Indexed)
	}
	if result.Failed != len(docs) {
		t.Errorf("failed = %d, want %d", result.Failed, len(docs))
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	svc := newMemoryService()
	ctx := context.Background()

	if _, err := svc.IndexDocument(ctx, search.Document{TenantID: "acme", Content: "exists"}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	_, err := svc.GetDocument(ctx, "acme", "no-such-doc")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteThenGetNotFound(t *testing.T) {
	svc := newMemoryService()
	ctx := context.Background()

	docID, err := svc.IndexDocument(ctx, search.Document{TenantID: "acme", Content: "ephemeral"})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	if !svc.DeleteDocument(ctx, "acme", docID) {
		t.Fatal("DeleteDocument returned false")
	}
	if _, err := svc.GetDocument(ctx, "acme", docID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteNonexistentReportsSuccess(t *testing.T) {
	svc := newMemoryService()
	if !svc.DeleteDocument(context.Background(), "acme", "never-existed") {
		t.Error("deleting a nonexistent document reported failure")
	}
}

func TestTenantStats(t *testing.T) {
	svc := newMemoryService()
	ctx := context.Background()

	stats, err := svc.TenantStats(ctx, "acme")
	if err != nil {
		t.Fatalf("TenantStats before writes: %v", err)
	}
	if stats.IndexExists {
		t.Error("IndexExists = true for a tenant that never wrote")
	}

	if _, err := svc.IndexDocument(ctx, search.Document{TenantID: "acme", Content: "one"}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	stats, err = svc.TenantStats(ctx, "acme")
	if err != nil {
		t.Fatalf("TenantStats: %v", err)
	}
	if !stats.IndexExists {
		t.Fatal("IndexExists = false after a write")
	}
	if stats.TotalDocuments != 1 {
		t.Errorf("TotalDocuments = %d, want 1", stats.TotalDocuments)
	}
	if stats.Shards != 5 || stats.Replicas != 2 {
		t.Errorf("topology = %d/%d, want 5/2", stats.Shards, stats.Replicas)
	}
	if stats.IndexName != search.IndexName("acme") {
		t.Errorf("IndexName = %q, want %q", stats.IndexName, search.IndexName("acme"))
	}
}

func TestMetricsCountersAdvanceOnSuccessOnly(t *testing.T) {
	svc := newMemoryService()
	ctx := context.Background()

	// A search against a missing index is not a successful round trip.
	if _, err := svc.Search(ctx, "ghost", "anything", 10); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if m := svc.Metrics(ctx); m.TotalQueries != 0 {
		t.Errorf("TotalQueries = %d after missing-index search, want 0", m.TotalQueries)
	}

	if _, err := svc.IndexDocument(ctx, search.Document{TenantID: "acme", Content: "counted"}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if _, err := svc.Search(ctx, "acme", "counted", 10); err != nil {
		t.Fatalf("Search: %v", err)
	}

	m := svc.Metrics(ctx)
	if m.TotalQueries != 1 {
		t.Errorf("TotalQueries = %d, want 1", m.TotalQueries)
	}
	if m.TotalDocuments != 1 {
		t.Errorf("TotalDocuments = %d, want 1", m.TotalDocuments)
	}
	if m.ClusterHealth != "green" {
		t.Errorf("ClusterHealth = %q, want green", m.ClusterHealth)
	}
}

func TestEnsureIndexConcurrentFirstWriters(t *testing.T) {
	svc := newMemoryService()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.EnsureIndex(context.Background(), "brand-new")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent EnsureIndex errored: %v", err)
		}
	}

	stats, err := svc.TenantStats(context.Background(), "brand-new")
	if err != nil {
		t.Fatalf("TenantStats: %v", err)
	}
	if !stats.IndexExists {
		t.Error("index missing after concurrent provisioning")
	}
}

func TestEngineFailureSurfacesAsBackendError(t *testing.T) {
	svc := search.NewService(&failingEngine{})
	ctx := context.Background()

	if _, err := svc.IndexDocument(ctx, search.Document{TenantID: "acme", Content: "x"}); !errors.Is(err, apperrors.ErrBackend) {
		t.Errorf("IndexDocument err = %v, want ErrBackend", err)
	}
	if svc.DeleteDocument(ctx, "acme", "d1") {
		t.Error("DeleteDocument reported success while the engine is down")
	}
	if _, err := svc.GetDocument(ctx, "acme", "d1"); !errors.Is(err, apperrors.ErrBackend) {
		t.Errorf("GetDocument err = %v, want ErrBackend", err)
	}

	// Metrics still returns local counters when cluster health is down.
	m := svc.Metrics(ctx)
	if m.ClusterHealth != "" {
		t.Errorf("ClusterHealth = %q, want empty on failure", m.ClusterHealth)
	}
}

// failingEngine errors on every call, for degradation tests.
type failingEngine struct{}

var errEngineDown = errors.New("engine down")

func (f *failingEngine) IndexExists(context.Context, string) (bool, error) { return false, nil }
func (f *failingEngine) CreateIndex(context.Context, string, search.IndexSettings) error {
	return nil
}
func (f *failingEngine) IndexDocument(context.Context, string, search.Document) error {
	return errEngineDown
}
func (f *failingEngine) BulkIndex(context.Context, []search.BulkDoc) (search.BulkOutcome, error) {
	return search.BulkOutcome{}, errEngineDown
}
func (f *failingEngine) Search(context.Context, string, string, int) (search.Hits, error) {
	return search.Hits{}, errEngineDown
}
func (f *failingEngine) GetDocument(context.Context, string, string) (*search.Document, error) {
	return nil, errEngineDown
}
func (f *failingEngine) DeleteDocument(context.Context, string, string) error {
	return errEngineDown
}
func (f *failingEngine) CountDocuments(context.Context, string) (int64, error) {
	return 0, errEngineDown
}
func (f *failingEngine) Settings(context.Context, string) (search.IndexSettings, error) {
	return search.IndexSettings{}, errEngineDown
}
func (f *failingEngine) ClusterHealth(context.Context) (search.ClusterHealth, error) {
	return search.ClusterHealth{}, errEngineDown
}
