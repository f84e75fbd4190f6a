// Package memory implements search.Engine entirely in process: an inverted
// index with BM25 ranking per tenant index. It backs local development and
// tests where no Elasticsearch cluster is available. Writes are immediately
// visible to searches.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/jasvant6thstreet/distributed-search-elastic/internal/search"
)

// BM25 parameters.
const (
	k1 = 1.2
	b  = 0.75
)

type posting struct {
	frequency int
}

type tenantIndex struct {
	mu       sync.RWMutex
	settings search.IndexSettings
	docs     map[string]search.Document
	postings map[string]map[string]*posting
	docLen   map[string]int
	totalLen int64
}

func newTenantIndex(settings search.IndexSettings) *tenantIndex {
	return &tenantIndex{
		settings: settings,
		docs:     make(map[string]search.Document),
		postings: make(map[string]map[string]*posting),
		docLen:   make(map[string]int),
	}
}

// Engine is the in-process search backend. The outer map of indexes has its
// own lock; each index locks independently so tenants do not contend.
type Engine struct {
	mu      sync.RWMutex
	indexes map[string]*tenantIndex
}

// NewEngine creates an empty in-process engine.
func NewEngine() *Engine {
	return &Engine{indexes: make(map[string]*tenantIndex)}
}

func (e *Engine) index(name string) *tenantIndex {
	e.mu.RLock()
	idx := e.indexes[name]
	e.mu.RUnlock()
	return idx
}

func (e *Engine) IndexExists(_ context.Context, index string) (bool, error) {
	return e.index(index) != nil, nil
}

// CreateIndex is a no-op when the index already exists.
func (e *Engine) CreateIndex(_ context.Context, index string, settings search.IndexSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.indexes[index]; exists {
		return nil
	}
	e.indexes[index] = newTenantIndex(settings)
	return nil
}

func (e *Engine) IndexDocument(ctx context.Context, index string, doc search.Document) error {
	idx := e.index(index)
	if idx == nil {
		if err := e.CreateIndex(ctx, index, search.DefaultIndexSettings()); err != nil {
			return err
		}
		idx = e.index(index)
	}
	idx.put(doc)
	return nil
}

func (e *Engine) BulkIndex(ctx context.Context, docs []search.BulkDoc) (search.BulkOutcome, error) {
	var outcome search.BulkOutcome
	for _, item := range docs {
		if err := e.IndexDocument(ctx, item.Index, item.Doc); err != nil {
			outcome.Failed++
			continue
		}
		outcome.Succeeded++
	}
	return outcome, nil
}

func (e *Engine) Search(_ context.Context, index, query string, size int) (search.Hits, error) {
	idx := e.index(index)
	if idx == nil {
		return search.Hits{}, nil
	}
	return idx.search(query, size), nil
}

func (e *Engine) GetDocument(_ context.Context, index, docID string) (*search.Document, error) {
	idx := e.index(index)
	if idx == nil {
		return nil, nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	doc, ok := idx.docs[docID]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// DeleteDocument is a no-op for unknown documents.
func (e *Engine) DeleteDocument(_ context.Context, index, docID string) error {
	idx := e.index(index)
	if idx == nil {
		return nil
	}
	idx.remove(docID)
	return nil
}

func (e *Engine) CountDocuments(_ context.Context, index string) (int64, error) {
	idx := e.index(index)
	if idx == nil {
		return 0, nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int64(len(idx.docs)), nil
}

func (e *Engine) Settings(_ context.Context, index string) (search.IndexSettings, error) {
	idx := e.index(index)
	if idx == nil {
		return search.IndexSettings{}, nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.settings, nil
}

// ClusterHealth reports a fixed single-node green cluster.
func (e *Engine) ClusterHealth(_ context.Context) (search.ClusterHealth, error) {
	return search.ClusterHealth{
		Status:            "green",
		NumberOfNodes:     1,
		NumberOfDataNodes: 1,
	}, nil
}

// put indexes or reindexes one document.
func (t *tenantIndex) put(doc search.Document) {
	terms := tokenize(doc.Content)
	termFreq := make(map[string]int, len(terms))
	for _, term := range terms {
		termFreq[term]++
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.dropLocked(doc.DocID)
	for term, freq := range termFreq {
		docs, exists := t.postings[term]
		if !exists {
			docs = make(map[string]*posting)
			t.postings[term] = docs
		}
		docs[doc.DocID] = &posting{frequency: freq}
	}
	t.docs[doc.DocID] = doc
	t.docLen[doc.DocID] = len(terms)
	t.totalLen += int64(len(terms))
}

func (t *tenantIndex) remove(docID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dropLocked(docID)
}

// dropLocked unindexes a document's terms. Caller holds t.mu.
func (t *tenantIndex) dropLocked(docID string) {
	old, exists := t.docs[docID]
	if !exists {
		return
	}
	for _, term := range tokenize(old.Content) {
		if docs, ok := t.postings[term]; ok {
			delete(docs, docID)
			if len(docs) == 0 {
				delete(t.postings, term)
			}
		}
	}
	t.totalLen -= int64(t.docLen[docID])
	delete(t.docLen, docID)
	delete(t.docs, docID)
}

func (t *tenantIndex) search(query string, size int) search.Hits {
	terms := tokenize(query)
	if len(terms) == 0 {
		return search.Hits{ShardsQueried: 0}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	totalDocs := int64(len(t.docs))
	var avgDocLength float64
	if totalDocs > 0 {
		avgDocLength = float64(t.totalLen) / float64(totalDocs)
	}

	scores := make(map[string]float64)
	for _, term := range terms {
		docs, ok := t.postings[term]
		if !ok {
			continue
		}
		idf := computeIDF(totalDocs, int64(len(docs)))
		for docID, p := range docs {
			tfNorm := computeTFNorm(
				float64(p.frequency),
				float64(t.docLen[docID]),
				avgDocLength,
			)
			scores[docID] += idf * tfNorm
		}
	}

	hits := make([]search.Hit, 0, len(scores))
	for docID, score := range scores {
		hits = append(hits, search.Hit{
			Doc:   t.docs[docID],
			Score: math.Round(score*10000) / 10000,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Doc.DocID < hits[j].Doc.DocID
	})
	if size > 0 && len(hits) > size {
		hits = hits[:size]
	}
	return search.Hits{Hits: hits, ShardsQueried: t.settings.Shards}
}

func computeIDF(totalDocs, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq, docLength, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
