package search

import "context"

// IndexSettings is the topology applied to every tenant index.
type IndexSettings struct {
	Shards          int
	Replicas        int
	RefreshInterval string
}

// DefaultIndexSettings returns the fixed topology used for provisioning:
// 5 primary shards, 2 replicas, writes visible within one second.
func DefaultIndexSettings() IndexSettings {
	return IndexSettings{
		Shards:          5,
		Replicas:        2,
		RefreshInterval: "1s",
	}
}

// BulkDoc pairs a document with the index it is destined for.
type BulkDoc struct {
	Index string
	Doc   Document
}

// BulkOutcome reports per-item results of one bulk write.
type BulkOutcome struct {
	Succeeded int
	Failed    int
}

// Hit is a single engine match.
type Hit struct {
	Doc   Document
	Score float64
}

// Hits is the engine's answer to one query.
type Hits struct {
	Hits          []Hit
	ShardsQueried int
}

// ClusterHealth describes the engine cluster, as reported by the engine.
type ClusterHealth struct {
	Status            string `json:"status"`
	NumberOfNodes     int    `json:"number_of_nodes"`
	NumberOfDataNodes int    `json:"number_of_data_nodes"`
}

// Engine is the external search-and-storage collaborator. Implementations
// must make CreateIndex idempotent (creating an existing index is a no-op)
// and must make IndexDocument, BulkIndex, and DeleteDocument wait until the
// write is visible to subsequent searches before returning.
type Engine interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, settings IndexSettings) error
	IndexDocument(ctx context.Context, index string, doc Document) error
	BulkIndex(ctx context.Context, docs []BulkDoc) (BulkOutcome, error)
	Search(ctx context.Context, index, query string, size int) (Hits, error)
	// GetDocument returns (nil, nil) when the document does not exist.
	GetDocument(ctx context.Context, index, docID string) (*Document, error)
	DeleteDocument(ctx context.Context, index, docID string) error
	CountDocuments(ctx context.Context, index string) (int64, error)
	Settings(ctx context.Context, index string) (IndexSettings, error)
	ClusterHealth(ctx context.Context) (ClusterHealth, error)
}

// QueryCache caches search responses per tenant. Implementations must be
// safe for concurrent use; the orchestrator treats a nil cache as disabled.
type QueryCache interface {
	Get(ctx context.Context, tenantID, query string, topK int) (*SearchResponse, bool)
	Set(ctx context.Context, tenantID, query string, topK int, resp *SearchResponse)
	InvalidateTenant(ctx context.Context, tenantID string)
}
