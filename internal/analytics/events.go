// Package analytics publishes per-operation events to Kafka, best-effort.
// Publishing never sits on a request's critical path and a nil Publisher
// disables it entirely.
package analytics

import "time"

type EventType string

const (
	EventSearch EventType = "search"
	EventIndex  EventType = "index_document"
	EventBulk   EventType = "bulk_index"
	EventDelete EventType = "delete_document"
)

// SearchEvent records one search round trip.
type SearchEvent struct {
	Type      EventType `json:"type"`
	TenantID  string    `json:"tenant_id"`
	Query     string    `json:"query"`
	Returned  int       `json:"returned"`
	LatencyMs float64   `json:"latency_ms"`
	Shards    int       `json:"shards"`
	Timestamp time.Time `json:"timestamp"`
}

// IndexEvent records one write operation (single, bulk, or delete).
type IndexEvent struct {
	Type      EventType `json:"type"`
	TenantID  string    `json:"tenant_id"`
	DocID     string    `json:"document_id,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
