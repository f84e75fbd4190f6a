package elastic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/jasvant6thstreet/distributed-search-elastic/internal/search"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/config"
)

// newTestClient points a Client at a stub Elasticsearch endpoint.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	return NewClient(config.ElasticsearchConfig{
		Host:   u.Hostname(),
		Port:   port,
		Scheme: "http",
	})
}

func TestIndexExists(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		if r.URL.Path == "/search-docs-acme" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	exists, err := client.IndexExists(context.Background(), "search-docs-acme")
	if err != nil {
		t.Fatalf("IndexExists: %v", err)
	}
	if !exists {
		t.Error("exists = false, want true")
	}

	exists, err = client.IndexExists(context.Background(), "search-docs-ghost")
	if err != nil {
		t.Fatalf("IndexExists: %v", err)
	}
	if exists {
		t.Error("exists = true for a missing index")
	}
}

func TestCreateIndexSendsTopologyAndMappings(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding create body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"acknowledged":true}`))
	})

	err := client.CreateIndex(context.Background(), "search-docs-acme", search.DefaultIndexSettings())
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}

	settings := body["settings"].(map[string]any)
	if settings["number_of_shards"] != float64(5) {
		t.Errorf("number_of_shards = %v, want 5", settings["number_of_shards"])
	}
	if settings["number_of_replicas"] != float64(2) {
		t.Errorf("number_of_replicas = %v, want 2", settings["number_of_replicas"])
	}
	if settings["refresh_interval"] != "1s" {
		t.Errorf("refresh_interval = %v, want 1s", settings["refresh_interval"])
	}

	props := body["mappings"].(map[string]any)["properties"].(map[string]any)
	content := props["content"].(map[string]any)
	if content["type"] != "text" || content["analyzer"] != "standard" {
		t.Errorf("content mapping = %v, want analyzed text", content)
	}
}

func TestCreateIndexAlreadyExistsIsSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"resource_already_exists_exception"}}`))
	})

	if err := client.CreateIndex(context.Background(), "idx", search.DefaultIndexSettings()); err != nil {
		t.Errorf("racing create returned error: %v", err)
	}
}

func TestIndexDocumentWaitsForVisibility(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/idx/_doc/d1" {
			t.Errorf("path = %s, want /idx/_doc/d1", r.URL.Path)
		}
		if r.URL.Query().Get("refresh") != "wait_for" {
			t.Errorf("refresh = %q, want wait_for", r.URL.Query().Get("refresh"))
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":"created"}`))
	})

	err := client.IndexDocument(context.Background(), "idx", search.Document{DocID: "d1", Content: "x"})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
}

func TestBulkIndexCountsPerItemErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_bulk" {
			t.Errorf("path = %s, want /_bulk", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"errors": true,
			"items": [
				{"index": {"status": 201}},
				{"index": {"status": 400, "error": {"type": "mapper_parsing_exception"}}},
				{"index": {"status": 200}}
			]
		}`))
	})

	docs := []search.BulkDoc{
		{Index: "idx", Doc: search.Document{DocID: "1", Content: "a"}},
		{Index: "idx", Doc: search.Document{DocID: "2", Content: "b"}},
		{Index: "idx", Doc: search.Document{DocID: "3", Content: "c"}},
	}
	outcome, err := client.BulkIndex(context.Background(), docs)
	if err != nil {
		t.Fatalf("BulkIndex: %v", err)
	}
	if outcome.Succeeded != 2 || outcome.Failed != 1 {
		t.Errorf("outcome = %+v, want 2 succeeded / 1 failed", outcome)
	}
}

func TestSearchParsesHits(t *testing.T) {
	var query map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			t.Errorf("decoding query body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"_shards": {"successful": 5},
			"hits": {"hits": [
				{"_score": 1.7, "_source": {"doc_id": "d1", "tenant_id": "acme", "content": "hello world"}}
			]}
		}`))
	})

	hits, err := client.Search(context.Background(), "idx", "hello", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	match := query["query"].(map[string]any)["match"].(map[string]any)
	if match["content"] != "hello" {
		t.Errorf("match query = %v, want content:hello", match)
	}
	if query["size"] != float64(10) {
		t.Errorf("size = %v, want 10", query["size"])
	}

	if len(hits.Hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits.Hits))
	}
	if hits.Hits[0].Score != 1.7 {
		t.Errorf("score = %v, want 1.7", hits.Hits[0].Score)
	}
	if hits.Hits[0].Doc.Content != "hello world" {
		t.Errorf("content = %q", hits.Hits[0].Doc.Content)
	}
	if hits.ShardsQueried != 5 {
		t.Errorf("ShardsQueried = %d, want 5", hits.ShardsQueried)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"found":false}`))
	})

	doc, err := client.GetDocument(context.Background(), "idx", "ghost")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc != nil {
		t.Error("doc != nil for a 404")
	}
}

func TestDeleteDocumentMissingIsSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"result":"not_found"}`))
	})

	if err := client.DeleteDocument(context.Background(), "idx", "ghost"); err != nil {
		t.Errorf("deleting a missing document errored: %v", err)
	}
}

func TestSettingsParsesStringValues(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"search-docs-acme": {"settings": {"index": {
				"number_of_shards": "5",
				"number_of_replicas": "2",
				"refresh_interval": "1s"
			}}}
		}`))
	})

	settings, err := client.Settings(context.Background(), "search-docs-acme")
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	want := search.IndexSettings{Shards: 5, Replicas: 2, RefreshInterval: "1s"}
	if settings != want {
		t.Errorf("settings = %+v, want %+v", settings, want)
	}
}

func TestClusterHealth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_cluster/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"yellow","number_of_nodes":3,"number_of_data_nodes":2}`))
	})

	health, err := client.ClusterHealth(context.Background())
	if err != nil {
		t.Fatalf("ClusterHealth: %v", err)
	}
	if health.Status != "yellow" || health.NumberOfNodes != 3 || health.NumberOfDataNodes != 2 {
		t.Errorf("health = %+v", health)
	}
}

func TestCircuitOpensAfterRepeatedServerErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := client.IndexExists(ctx, "idx"); err == nil {
			t.Fatal("expected error from 500 response")
		}
	}

	// The breaker now rejects without a round trip.
	_, err := client.IndexExists(ctx, "idx")
	if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Errorf("err = %v, want circuit-open rejection", err)
	}
}
