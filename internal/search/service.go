// Package search orchestrates tenant-scoped document operations against the
// external search engine: per-tenant index provisioning, single and bulk
// indexing, full-text search, point lookup, deletion, and stats/metrics
// aggregation. Authentication has already run by the time a request reaches
// this package; every operation trusts the tenant identity it is given.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jasvant6thstreet/distributed-search-elastic/internal/analytics"
	apperrors "github.com/jasvant6thstreet/distributed-search-elastic/pkg/errors"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/metrics"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/resilience"
)

// defaultCallTimeout bounds every engine call; the engine is a networked
// system that can stall.
const defaultCallTimeout = 10 * time.Second

// ensureConcurrency caps parallel index provisioning during bulk writes.
const ensureConcurrency = 4

// Service is the search orchestrator. Its only process-wide mutable state
// is the trio of cumulative counters, updated atomically.
type Service struct {
	engine      Engine
	cache       QueryCache
	events      *analytics.Publisher
	prom        *metrics.Metrics
	callTimeout time.Duration
	logger      *slog.Logger

	totalQueries     atomic.Int64
	totalDocuments   atomic.Int64
	totalQueryMicros atomic.Int64
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithCache attaches a query cache; writes invalidate it per tenant.
func WithCache(cache QueryCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithAnalytics attaches a best-effort analytics publisher.
func WithAnalytics(events *analytics.Publisher) Option {
	return func(s *Service) { s.events = events }
}

// WithPrometheus attaches Prometheus collectors.
func WithPrometheus(m *metrics.Metrics) Option {
	return func(s *Service) { s.prom = m }
}

// WithCallTimeout overrides the per-engine-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// NewService creates the orchestrator on top of an Engine.
func NewService(engine Engine, opts ...Option) *Service {
	s := &Service{
		engine:      engine,
		callTimeout: defaultCallTimeout,
		logger:      slog.Default().With("component", "search-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndex provisions the tenant's index if it does not exist yet.
// Idempotent: concurrent first-writers may both attempt creation, and the
// engine treats creating an existing index as a no-op.
func (s *Service) EnsureIndex(ctx context.Context, tenantID string) error {
	index := IndexName(tenantID)

	var exists bool
	err := s.call(ctx, "exists", func(ctx context.Context) error {
		var callErr error
		exists, callErr = s.engine.IndexExists(ctx, index)
		return callErr
	})
	if err != nil {
		return fmt.Errorf("%w: checking index %s: %w", apperrors.ErrBackend, index, err)
	}
	if exists {
		return nil
	}

	s.logger.Info("creating index for tenant", "tenant", tenantID, "index", index)
	err = s.call(ctx, "create_index", func(ctx context.Context) error {
		return s.engine.CreateIndex(ctx, index, DefaultIndexSettings())
	})
	if err != nil {
		return fmt.Errorf("%w: creating index %s: %w", apperrors.ErrBackend, index, err)
	}
	return nil
}

// IndexDocument writes one document to its tenant's index, provisioning the
// index first, and returns the document id (generated when the caller did
// not supply one). The write is visible to searches once this returns.
func (s *Service) IndexDocument(ctx context.Context, doc Document) (string, error) {
	if doc.TenantID == "" {
		return "", fmt.Errorf("%w: document has no tenant", apperrors.ErrInvalidInput)
	}
	if doc.Content == "" {
		return "", fmt.Errorf("%w: content is required", apperrors.ErrInvalidInput)
	}
	if doc.DocID == "" {
		doc.DocID = uuid.NewString()
	}
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now().UTC()
	}

	if err := s.EnsureIndex(ctx, doc.TenantID); err != nil {
		return "", err
	}

	index := IndexName(doc.TenantID)
	err := s.call(ctx, "index", func(ctx context.Context) error {
		return s.engine.IndexDocument(ctx, index, doc)
	})
	if err != nil {
		s.logger.Error("failed to index document",
			"tenant", doc.TenantID, "doc_id", doc.DocID, "error", err)
		return "", fmt.Errorf("%w: indexing document %s: %w", apperrors.ErrBackend, doc.DocID, err)
	}

	s.totalDocuments.Add(1)
	if s.prom != nil {
		s.prom.DocsIndexedTotal.Inc()
	}
	s.invalidateCache(ctx, doc.TenantID)
	s.events.PublishIndex(analytics.IndexEvent{
		Type:     analytics.EventIndex,
		TenantID: doc.TenantID,
		DocID:    doc.DocID,
	})

	s.logger.Debug("indexed document", "doc_id", doc.DocID, "index", index)
	return doc.DocID, nil
}

// IndexBatch writes many documents (possibly spanning tenants) in a single
// bulk round trip. It never returns an error: an engine-level failure
// degrades to a BulkResult whose Failed count covers the whole batch.
// Indexed+Failed always equals len(docs).
func (s *Service) IndexBatch(ctx context.Context, docs []Document) BulkResult {
	if len(docs) == 0 {
		return BulkResult{}
	}
	start := time.Now()

	tenants := make(map[string]struct{})
	bulkDocs := make([]BulkDoc, 0, len(docs))
	for i := range docs {
		doc := docs[i]
		if doc.DocID == "" {
			doc.DocID = uuid.NewString()
		}
		if doc.Timestamp.IsZero() {
			doc.Timestamp = time.Now().UTC()
		}
		tenants[doc.TenantID] = struct{}{}
		bulkDocs = append(bulkDocs, BulkDoc{Index: IndexName(doc.TenantID), Doc: doc})
	}

	// Provision once per distinct tenant before the single bulk write.
	g, ensureCtx := errgroup.WithContext(ctx)
	g.SetLimit(ensureConcurrency)
	for tenantID := range tenants {
		g.Go(func() error {
			return s.EnsureIndex(ensureCtx, tenantID)
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("bulk index aborted during provisioning", "error", err)
		return s.finishBatch(ctx, tenants, BulkResult{
			Failed: len(docs),
			TimeMs: msSince(start),
		})
	}

	var outcome BulkOutcome
	err := s.call(ctx, "bulk", func(ctx context.Context) error {
		var callErr error
		outcome, callErr = s.engine.BulkIndex(ctx, bulkDocs)
		return callErr
	})
	if err != nil {
		s.logger.Error("bulk index failed", "docs", len(docs), "error", err)
		return s.finishBatch(ctx, tenants, BulkResult{
			Indexed: outcome.Succeeded,
			Failed:  len(docs) - outcome.Succeeded,
			TimeMs:  msSince(start),
		})
	}

	result := BulkResult{
		Indexed: outcome.Succeeded,
		Failed:  len(docs) - outcome.Succeeded,
		TimeMs:  msSince(start),
	}
	s.logger.Info("bulk indexed documents",
		"total", len(docs), "indexed", result.Indexed, "failed", result.Failed,
		"time_ms", result.TimeMs)
	return s.finishBatch(ctx, tenants, result)
}

// finishBatch records counters, invalidates caches, and emits analytics for
// one bulk operation regardless of how it ended.
func (s *Service) finishBatch(ctx context.Context, tenants map[string]struct{}, result BulkResult) BulkResult {
	s.totalDocuments.Add(int64(result.Indexed))
	if s.prom != nil {
		s.prom.DocsIndexedTotal.Add(float64(result.Indexed))
		outcome := "ok"
		switch {
		case result.Indexed == 0 && result.Failed > 0:
			outcome = "failed"
		case result.Failed > 0:
			outcome = "partial"
		}
		s.prom.BulkBatchesTotal.WithLabelValues(outcome).Inc()
	}
	for tenantID := range tenants {
		s.invalidateCache(ctx, tenantID)
		s.events.PublishIndex(analytics.IndexEvent{
			Type:     analytics.EventBulk,
			TenantID: tenantID,
			Count:    result.Indexed,
		})
	}
	return result
}

// Search runs a full-text query against the tenant's index. A tenant that
// has never written gets an empty result set with zero stats, not an error.
// Cumulative query counters advance only on a successful engine round trip.
func (s *Service) Search(ctx context.Context, tenantID, query string, topK int) (SearchResponse, error) {
	index := IndexName(tenantID)

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, tenantID, query, topK); ok {
			if s.prom != nil {
				s.prom.CacheHitsTotal.Inc()
			}
			return *cached, nil
		}
		if s.prom != nil {
			s.prom.CacheMissesTotal.Inc()
		}
	}

	start := time.Now()

	var exists bool
	err := s.call(ctx, "exists", func(ctx context.Context) error {
		var callErr error
		exists, callErr = s.engine.IndexExists(ctx, index)
		return callErr
	})
	if err != nil {
		s.countQuery("error")
		return SearchResponse{}, fmt.Errorf("%w: checking index %s: %w", apperrors.ErrBackend, index, err)
	}
	if !exists {
		s.logger.Warn("search against missing index", "tenant", tenantID, "index", index)
		s.countQuery("empty_index")
		return SearchResponse{Results: []Result{}}, nil
	}

	var hits Hits
	err = s.call(ctx, "search", func(ctx context.Context) error {
		var callErr error
		hits, callErr = s.engine.Search(ctx, index, query, topK)
		return callErr
	})
	if err != nil {
		s.countQuery("error")
		s.logger.Error("search failed", "tenant", tenantID, "query", query, "error", err)
		return SearchResponse{}, fmt.Errorf("%w: searching index %s: %w", apperrors.ErrBackend, index, err)
	}

	elapsed := time.Since(start)
	results := make([]Result, 0, len(hits.Hits))
	for _, hit := range hits.Hits {
		results = append(results, ResultFromDocument(hit.Doc, hit.Score))
	}
	resp := SearchResponse{
		Results: results,
		Stats: QueryStats{
			QueryTimeMs:   msOf(elapsed),
			DocsScanned:   len(results),
			ShardsQueried: hits.ShardsQueried,
			ResultsCount:  len(results),
		},
	}

	s.totalQueries.Add(1)
	s.totalQueryMicros.Add(elapsed.Microseconds())
	s.countQuery("ok")
	if s.prom != nil {
		s.prom.SearchLatency.Observe(elapsed.Seconds())
	}
	if s.cache != nil {
		s.cache.Set(ctx, tenantID, query, topK, &resp)
	}
	s.events.PublishSearch(analytics.SearchEvent{
		TenantID:  tenantID,
		Query:     query,
		Returned:  len(results),
		LatencyMs: resp.Stats.QueryTimeMs,
		Shards:    hits.ShardsQueried,
	})

	s.logger.Debug("search completed",
		"tenant", tenantID, "results", len(results), "time_ms", resp.Stats.QueryTimeMs)
	return resp, nil
}

// GetDocument fetches one document by id. Absence is reported as
// errors.ErrNotFound, which callers treat as a normal outcome.
func (s *Service) GetDocument(ctx context.Context, tenantID, docID string) (*Document, error) {
	index := IndexName(tenantID)

	var doc *Document
	err := s.call(ctx, "get", func(ctx context.Context) error {
		var callErr error
		doc, callErr = s.engine.GetDocument(ctx, index, docID)
		return callErr
	})
	if err != nil {
		s.logger.Error("get document failed", "tenant", tenantID, "doc_id", docID, "error", err)
		return nil, fmt.Errorf("%w: fetching document %s: %w", apperrors.ErrBackend, docID, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document %s", apperrors.ErrNotFound, docID)
	}
	return doc, nil
}

// DeleteDocument removes one document, waiting until the deletion is
// visible. Deleting a document that does not exist reports success; the
// engine's idempotent semantics govern.
func (s *Service) DeleteDocument(ctx context.Context, tenantID, docID string) bool {
	index := IndexName(tenantID)

	err := s.call(ctx, "delete", func(ctx context.Context) error {
		return s.engine.DeleteDocument(ctx, index, docID)
	})
	if err != nil {
		s.logger.Error("delete document failed", "tenant", tenantID, "doc_id", docID, "error", err)
		return false
	}

	s.invalidateCache(ctx, tenantID)
	s.events.PublishIndex(analytics.IndexEvent{
		Type:     analytics.EventDelete,
		TenantID: tenantID,
		DocID:    docID,
	})
	s.logger.Debug("deleted document", "doc_id", docID, "index", index)
	return true
}

// TenantStats reports one tenant's document count and index topology, or
// IndexExists=false for a tenant that has never written.
func (s *Service) TenantStats(ctx context.Context, tenantID string) (TenantStats, error) {
	index := IndexName(tenantID)

	var exists bool
	err := s.call(ctx, "exists", func(ctx context.Context) error {
		var callErr error
		exists, callErr = s.engine.IndexExists(ctx, index)
		return callErr
	})
	if err != nil {
		return TenantStats{}, fmt.Errorf("%w: checking index %s: %w", apperrors.ErrBackend, index, err)
	}
	if !exists {
		return TenantStats{IndexExists: false}, nil
	}

	var count int64
	err = s.call(ctx, "count", func(ctx context.Context) error {
		var callErr error
		count, callErr = s.engine.CountDocuments(ctx, index)
		return callErr
	})
	if err != nil {
		return TenantStats{}, fmt.Errorf("%w: counting documents in %s: %w", apperrors.ErrBackend, index, err)
	}

	var settings IndexSettings
	err = s.call(ctx, "settings", func(ctx context.Context) error {
		var callErr error
		settings, callErr = s.engine.Settings(ctx, index)
		return callErr
	})
	if err != nil {
		return TenantStats{}, fmt.Errorf("%w: reading settings of %s: %w", apperrors.ErrBackend, index, err)
	}

	return TenantStats{
		IndexExists:    true,
		TotalDocuments: count,
		Shards:         settings.Shards,
		Replicas:       settings.Replicas,
		IndexName:      index,
	}, nil
}

// Metrics returns the cumulative counters, merging in engine cluster health
// best-effort: an unreachable engine never hides the local counters.
func (s *Service) Metrics(ctx context.Context) Metrics {
	queries := s.totalQueries.Load()
	m := Metrics{
		TotalQueries:   queries,
		TotalDocuments: s.totalDocuments.Load(),
	}
	if queries > 0 {
		m.AvgQueryTimeMs = float64(s.totalQueryMicros.Load()) / 1000.0 / float64(queries)
	}

	var health ClusterHealth
	err := s.call(ctx, "cluster_health", func(ctx context.Context) error {
		var callErr error
		health, callErr = s.engine.ClusterHealth(ctx)
		return callErr
	})
	if err != nil {
		s.logger.Warn("cluster health unavailable", "error", err)
		return m
	}
	m.ClusterHealth = health.Status
	m.NumberOfNodes = health.NumberOfNodes
	m.NumberOfDataNodes = health.NumberOfDataNodes
	return m
}

// ClusterHealth exposes the engine's own health report for the health
// endpoint.
func (s *Service) ClusterHealth(ctx context.Context) (ClusterHealth, error) {
	var health ClusterHealth
	err := s.call(ctx, "cluster_health", func(ctx context.Context) error {
		var callErr error
		health, callErr = s.engine.ClusterHealth(ctx)
		return callErr
	})
	if err != nil {
		return ClusterHealth{}, fmt.Errorf("%w: cluster health: %w", apperrors.ErrBackend, err)
	}
	return health, nil
}

func (s *Service) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := resilience.WithTimeout(ctx, s.callTimeout, "engine "+op, fn)
	if s.prom != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.prom.EngineCallDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	}
	return err
}

func (s *Service) countQuery(outcome string) {
	if s.prom != nil {
		s.prom.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) invalidateCache(ctx context.Context, tenantID string) {
	if s.cache != nil {
		s.cache.InvalidateTenant(ctx, tenantID)
	}
}

func msSince(start time.Time) float64 {
	return msOf(time.Since(start))
}

func msOf(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
