// Package handler implements the gateway's HTTP endpoints. Every handler
// performs its own input validation, then delegates to the token service or
// the search orchestrator; tenant identity always comes from the request
// context set by the auth middleware.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jasvant6thstreet/distributed-search-elastic/internal/auth/token"
	"github.com/jasvant6thstreet/distributed-search-elastic/internal/gateway/middleware"
	"github.com/jasvant6thstreet/distributed-search-elastic/internal/search"
	apperrors "github.com/jasvant6thstreet/distributed-search-elastic/pkg/errors"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/health"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/logger"
)

const (
	defaultTopK = 10
	minTopK     = 1
	maxTopK     = 100
)

// Handler holds the dependencies shared by all endpoint handlers.
type Handler struct {
	search  *search.Service
	tokens  *token.Service
	checker *health.Checker
	backend string
	logger  *slog.Logger
}

// New creates a Handler. backend names the engine in health, search, and
// metrics responses ("elasticsearch" or "memory").
func New(searchSvc *search.Service, tokens *token.Service, checker *health.Checker, backend string) *Handler {
	return &Handler{
		search:  searchSvc,
		tokens:  tokens,
		checker: checker,
		backend: backend,
		logger:  slog.Default().With("component", "gateway-handler"),
	}
}

// Health handles GET /api/health. A degraded report still answers 200; only
// a down component turns the endpoint 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.checker.Run(r.Context())
	status := http.StatusOK
	if report.Status == health.StatusDown {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":     report.Status,
		"backend":    h.backend,
		"components": report.Components,
		"timestamp":  report.Timestamp,
	})
}

// IssueToken handles POST /api/auth/token.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenantId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenantId is required")
		return
	}

	signed, err := h.tokens.Issue(req.TenantID)
	if err != nil {
		h.logError(r, "token issuance failed", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     signed,
		"tenantId":  req.TenantID,
		"expiresIn": int64(h.tokens.TTL().Seconds()),
	})
}

type documentRequest struct {
	DocID    string         `json:"docId"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// IndexDocument handles POST /documents.
func (h *Handler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	docID, err := h.search.IndexDocument(r.Context(), search.Document{
		DocID:    req.DocID,
		TenantID: tenantID,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.logError(r, "index document failed", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"docId":     docID,
		"tenantId":  tenantID,
		"indexName": search.IndexName(tenantID),
	})
}

// IndexBatch handles POST /documents/batch. Items missing content are
// dropped before counting, so indexed+failed always equals the reported
// total.
func (h *Handler) IndexBatch(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	var req struct {
		Documents []documentRequest `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Documents == nil {
		writeError(w, http.StatusBadRequest, "documents is required")
		return
	}

	docs := make([]search.Document, 0, len(req.Documents))
	for _, item := range req.Documents {
		if item.Content == "" {
			continue
		}
		docs = append(docs, search.Document{
			DocID:    item.DocID,
			TenantID: tenantID,
			Content:  item.Content,
			Metadata: item.Metadata,
		})
	}

	result := h.search.IndexBatch(r.Context(), docs)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":        result.Failed == 0,
		"indexed":        result.Indexed,
		"failed":         result.Failed,
		"total":          len(docs),
		"indexingTimeMs": result.TimeMs,
	})
}

// SearchGET handles GET /search?q=...&topK=....
func (h *Handler) SearchGET(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	h.doSearch(w, r, query, r.URL.Query().Get("topK"))
}

// SearchPOST handles POST /search with {"query": ..., "topK": ...}.
func (h *Handler) SearchPOST(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		TopK  *int   `json:"topK"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	topK := ""
	if req.TopK != nil {
		topK = strconv.Itoa(*req.TopK)
	}
	h.doSearch(w, r, req.Query, topK)
}

func (h *Handler) doSearch(w http.ResponseWriter, r *http.Request, query, topKStr string) {
	tenantID := middleware.TenantFromContext(r.Context())

	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	topK := defaultTopK
	if topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "topK must be an integer")
			return
		}
		if parsed < minTopK || parsed > maxTopK {
			writeError(w, http.StatusBadRequest, "topK must be between 1 and 100")
			return
		}
		topK = parsed
	}

	resp, err := h.search.Search(r.Context(), tenantID, query, topK)
	if err != nil {
		h.logError(r, "search failed", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":  resp.Results,
		"stats":    resp.Stats,
		"tenantId": tenantID,
		"backend":  h.backend,
	})
}

// GetDocument handles GET /documents/{id}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())
	docID := r.PathValue("id")

	doc, err := h.search.GetDocument(r.Context(), tenantID, docID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logError(r, "get document failed", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /documents/{id}. Deleting an absent document
// reports success, matching the engine's idempotent delete.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())
	docID := r.PathValue("id")

	if !h.search.DeleteDocument(r.Context(), tenantID, docID) {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"docId":   docID,
	})
}

// TenantStats handles GET /api/stats.
func (h *Handler) TenantStats(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())

	stats, err := h.search.TenantStats(r.Context(), tenantID)
	if err != nil {
		h.logError(r, "tenant stats failed", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenantId": tenantID,
		"stats":    stats,
	})
}

// GlobalMetrics handles GET /api/metrics. Counters are always present;
// cluster health fields are best-effort.
func (h *Handler) GlobalMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"backend": h.backend,
		"metrics": h.search.Metrics(r.Context()),
	})
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	logger.FromContext(r.Context()).Error(msg,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps a typed error to its HTTP status. Backend failures are
// reported generically; the detailed cause stays in the logs.
func writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = "internal error"
	}
	if errors.Is(err, apperrors.ErrBackend) {
		status = http.StatusServiceUnavailable
		message = "search backend unavailable"
	}
	writeError(w, status, message)
}
