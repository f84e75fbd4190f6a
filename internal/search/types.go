package search

import (
	"strings"
	"time"
)

// IndexPrefix namespaces every tenant index on the backend.
const IndexPrefix = "search-docs-"

// snippetMaxRunes bounds the content excerpt carried in search results.
const snippetMaxRunes = 200

// Document is a tenant-owned unit of indexed content. The search engine is
// the system of record; the gateway never stores documents itself.
type Document struct {
	DocID     string         `json:"doc_id"`
	TenantID  string         `json:"tenant_id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Result is one search hit: a document reference plus the engine's
// relevance score and a bounded content snippet.
type Result struct {
	DocID    string         `json:"docId"`
	TenantID string         `json:"tenantId"`
	Score    float64        `json:"score"`
	Snippet  string         `json:"snippet"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ResultFromDocument builds a Result, truncating the snippet to 200 runes
// with a trailing ellipsis when the content is longer.
func ResultFromDocument(doc Document, score float64) Result {
	snippet := doc.Content
	if runes := []rune(snippet); len(runes) > snippetMaxRunes {
		snippet = string(runes[:snippetMaxRunes]) + "..."
	}
	return Result{
		DocID:    doc.DocID,
		TenantID: doc.TenantID,
		Score:    score,
		Snippet:  snippet,
		Metadata: doc.Metadata,
	}
}

// QueryStats summarizes one search round trip.
type QueryStats struct {
	QueryTimeMs   float64 `json:"queryTimeMs"`
	DocsScanned   int     `json:"docsScanned"`
	ShardsQueried int     `json:"shardsQueried"`
	ResultsCount  int     `json:"resultsCount"`
}

// SearchResponse is the orchestrator's answer to one search operation.
type SearchResponse struct {
	Results []Result   `json:"results"`
	Stats   QueryStats `json:"stats"`
}

// BulkResult summarizes one bulk indexing operation. Indexed+Failed always
// equals the number of documents submitted to the orchestrator.
type BulkResult struct {
	Indexed int     `json:"indexed"`
	Failed  int     `json:"failed"`
	TimeMs  float64 `json:"indexingTimeMs"`
}

// TenantStats reports one tenant's index footprint. IndexExists is false
// for tenants that have never written.
type TenantStats struct {
	IndexExists    bool   `json:"indexExists"`
	TotalDocuments int64  `json:"totalDocuments"`
	Shards         int    `json:"shards,omitempty"`
	Replicas       int    `json:"replicas,omitempty"`
	IndexName      string `json:"indexName,omitempty"`
}

// Metrics holds cumulative service-wide counters plus best-effort engine
// cluster health.
type Metrics struct {
	TotalQueries      int64   `json:"totalQueries"`
	TotalDocuments    int64   `json:"totalDocuments"`
	AvgQueryTimeMs    float64 `json:"avgQueryTimeMs"`
	ClusterHealth     string  `json:"clusterHealth,omitempty"`
	NumberOfNodes     int     `json:"numberOfNodes,omitempty"`
	NumberOfDataNodes int     `json:"numberOfDataNodes,omitempty"`
}

// IndexName derives the backend index for a tenant: lowercase, every
// character outside [a-z0-9-] replaced with '-', under a fixed prefix.
// The mapping is deterministic; tenants whose identities normalize to the
// same name share an index, which the gateway does not attempt to resolve.
func IndexName(tenantID string) string {
	var b strings.Builder
	b.WriteString(IndexPrefix)
	for _, r := range strings.ToLower(tenantID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
