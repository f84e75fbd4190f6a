// Package elastic implements search.Engine against the Elasticsearch REST
// API using plain HTTP. Calls run through a circuit breaker so a struggling
// cluster is shed quickly instead of piling up goroutines. Writes use
// refresh=wait_for, which blocks until the change is searchable.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jasvant6thstreet/distributed-search-elastic/internal/search"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/config"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/resilience"
)

// Client talks to one Elasticsearch endpoint.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	breaker  *resilience.CircuitBreaker
	logger   *slog.Logger
}

// NewClient builds a client for the configured endpoint. Basic auth is sent
// only when a username is configured.
func NewClient(cfg config.ElasticsearchConfig) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL(), "/"),
		username: cfg.Username,
		password: cfg.Password,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: resilience.NewCircuitBreaker("elasticsearch", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "elastic-client"),
	}
}

// IndexExists issues HEAD /{index}.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	status, _, err := c.do(ctx, http.MethodHead, "/"+index, nil)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("index exists check: unexpected status %d", status)
	}
}

// CreateIndex issues PUT /{index} with the topology and field mappings.
// A resource_already_exists_exception from a racing creator is a success.
func (c *Client) CreateIndex(ctx context.Context, index string, settings search.IndexSettings) error {
	body := map[string]any{
		"settings": map[string]any{
			"number_of_shards":   settings.Shards,
			"number_of_replicas": settings.Replicas,
			"refresh_interval":   settings.RefreshInterval,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"content": map[string]any{
					"type":     "text",
					"analyzer": "standard",
				},
				"doc_id":    map[string]any{"type": "keyword"},
				"tenant_id": map[string]any{"type": "keyword"},
				"timestamp": map[string]any{"type": "date"},
				"metadata":  map[string]any{"type": "object", "enabled": true},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding index settings: %w", err)
	}

	status, respBody, err := c.do(ctx, http.MethodPut, "/"+index, payload)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}
	if status == http.StatusBadRequest && bytes.Contains(respBody, []byte("resource_already_exists_exception")) {
		return nil
	}
	return fmt.Errorf("creating index: status %d: %s", status, truncateBody(respBody))
}

// IndexDocument issues PUT /{index}/_doc/{id}?refresh=wait_for.
func (c *Client) IndexDocument(ctx context.Context, index string, doc search.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	path := fmt.Sprintf("/%s/_doc/%s?refresh=wait_for", index, doc.DocID)
	status, respBody, err := c.do(ctx, http.MethodPut, path, payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("indexing document: status %d: %s", status, truncateBody(respBody))
	}
	return nil
}

// BulkIndex issues one POST /_bulk?refresh=wait_for carrying every document
// as NDJSON action/source pairs, and counts per-item outcomes.
func (c *Client) BulkIndex(ctx context.Context, docs []search.BulkDoc) (search.BulkOutcome, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range docs {
		action := map[string]any{
			"index": map[string]any{
				"_index": item.Index,
				"_id":    item.Doc.DocID,
			},
		}
		if err := enc.Encode(action); err != nil {
			return search.BulkOutcome{}, fmt.Errorf("encoding bulk action: %w", err)
		}
		if err := enc.Encode(item.Doc); err != nil {
			return search.BulkOutcome{}, fmt.Errorf("encoding bulk document: %w", err)
		}
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/_bulk?refresh=wait_for", buf.Bytes())
	if err != nil {
		return search.BulkOutcome{}, err
	}
	if status != http.StatusOK {
		return search.BulkOutcome{}, fmt.Errorf("bulk index: status %d: %s", status, truncateBody(respBody))
	}

	var resp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  any `json:"error"`
		} `json:"items"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return search.BulkOutcome{}, fmt.Errorf("decoding bulk response: %w", err)
	}

	var outcome search.BulkOutcome
	for _, item := range resp.Items {
		for _, result := range item {
			if result.Error != nil || result.Status >= 300 {
				outcome.Failed++
			} else {
				outcome.Succeeded++
			}
		}
	}
	return outcome, nil
}

// Search issues POST /{index}/_search with a match query on content.
func (c *Client) Search(ctx context.Context, index, query string, size int) (search.Hits, error) {
	body := map[string]any{
		"query": map[string]any{
			"match": map[string]any{
				"content": query,
			},
		},
		"size": size,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return search.Hits{}, fmt.Errorf("encoding query: %w", err)
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/"+index+"/_search", payload)
	if err != nil {
		return search.Hits{}, err
	}
	if status != http.StatusOK {
		return search.Hits{}, fmt.Errorf("search: status %d: %s", status, truncateBody(respBody))
	}

	var resp struct {
		Shards struct {
			Successful int `json:"successful"`
		} `json:"_shards"`
		Hits struct {
			Hits []struct {
				Score  float64         `json:"_score"`
				Source search.Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return search.Hits{}, fmt.Errorf("decoding search response: %w", err)
	}

	hits := make([]search.Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		hits = append(hits, search.Hit{Doc: h.Source, Score: h.Score})
	}
	return search.Hits{Hits: hits, ShardsQueried: resp.Shards.Successful}, nil
}

// GetDocument issues GET /{index}/_doc/{id}. A 404 (missing document or
// missing index) yields (nil, nil).
func (c *Client) GetDocument(ctx context.Context, index, docID string) (*search.Document, error) {
	status, respBody, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/%s/_doc/%s", index, docID), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("get document: status %d: %s", status, truncateBody(respBody))
	}

	var resp struct {
		Found  bool            `json:"found"`
		Source search.Document `json:"_source"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding get response: %w", err)
	}
	if !resp.Found {
		return nil, nil
	}
	return &resp.Source, nil
}

// DeleteDocument issues DELETE /{index}/_doc/{id}?refresh=wait_for. A 404
// means the document was already gone, which is a success.
func (c *Client) DeleteDocument(ctx context.Context, index, docID string) error {
	path := fmt.Sprintf("/%s/_doc/%s?refresh=wait_for", index, docID)
	status, respBody, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK || status == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("delete document: status %d: %s", status, truncateBody(respBody))
}

// CountDocuments issues GET /{index}/_count.
func (c *Client) CountDocuments(ctx context.Context, index string) (int64, error) {
	status, respBody, err := c.do(ctx, http.MethodGet, "/"+index+"/_count", nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("count documents: status %d: %s", status, truncateBody(respBody))
	}

	var resp struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}
	return resp.Count, nil
}

// Settings issues GET /{index}/_settings. Elasticsearch reports shard and
// replica counts as strings.
func (c *Client) Settings(ctx context.Context, index string) (search.IndexSettings, error) {
	status, respBody, err := c.do(ctx, http.MethodGet, "/"+index+"/_settings", nil)
	if err != nil {
		return search.IndexSettings{}, err
	}
	if status != http.StatusOK {
		return search.IndexSettings{}, fmt.Errorf("index settings: status %d: %s", status, truncateBody(respBody))
	}

	var resp map[string]struct {
		Settings struct {
			Index struct {
				NumberOfShards   string `json:"number_of_shards"`
				NumberOfReplicas string `json:"number_of_replicas"`
				RefreshInterval  string `json:"refresh_interval"`
			} `json:"index"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return search.IndexSettings{}, fmt.Errorf("decoding settings response: %w", err)
	}

	entry, ok := resp[index]
	if !ok {
		// Settings come back keyed by the concrete index name, which can
		// differ from the request when aliases are involved; take any entry.
		for _, v := range resp {
			entry = v
			ok = true
			break
		}
	}
	if !ok {
		return search.IndexSettings{}, fmt.Errorf("index settings: empty response for %s", index)
	}

	shards, _ := strconv.Atoi(entry.Settings.Index.NumberOfShards)
	replicas, _ := strconv.Atoi(entry.Settings.Index.NumberOfReplicas)
	return search.IndexSettings{
		Shards:          shards,
		Replicas:        replicas,
		RefreshInterval: entry.Settings.Index.RefreshInterval,
	}, nil
}

// ClusterHealth issues GET /_cluster/health.
func (c *Client) ClusterHealth(ctx context.Context) (search.ClusterHealth, error) {
	status, respBody, err := c.do(ctx, http.MethodGet, "/_cluster/health", nil)
	if err != nil {
		return search.ClusterHealth{}, err
	}
	if status != http.StatusOK {
		return search.ClusterHealth{}, fmt.Errorf("cluster health: status %d: %s", status, truncateBody(respBody))
	}

	var health search.ClusterHealth
	if err := json.Unmarshal(respBody, &health); err != nil {
		return search.ClusterHealth{}, fmt.Errorf("decoding cluster health: %w", err)
	}
	return health, nil
}

// Ping reports whether the endpoint answers at all; used by health checks.
func (c *Client) Ping(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("elasticsearch ping: status %d", status)
	}
	return nil
}

// do runs one HTTP round trip through the circuit breaker. Transport errors
// and 5xx responses count as breaker failures; 4xx responses do not, since
// they describe the request, not the cluster.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var status int
	var respBody []byte
	err := c.breaker.Execute(func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("building request %s %s: %w", method, path, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response of %s %s: %w", method, path, err)
		}
		if status >= http.StatusInternalServerError {
			return fmt.Errorf("%s %s: server status %d", method, path, status)
		}
		return nil
	})
	if err != nil {
		// 5xx already produced status and body; hand them back alongside the
		// error so callers can log the payload.
		return status, respBody, err
	}
	return status, respBody, nil
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
