// Package router wires up the gateway routes and applies the middleware
// chain (RequestID → CORS → Metrics → Timeout → Auth → RateLimit).
package router

import (
	"net/http"
	"time"

	"github.com/jasvant6thstreet/distributed-search-elastic/internal/auth/ratelimit"
	"github.com/jasvant6thstreet/distributed-search-elastic/internal/auth/token"
	gwhandler "github.com/jasvant6thstreet/distributed-search-elastic/internal/gateway/handler"
	gwmw "github.com/jasvant6thstreet/distributed-search-elastic/internal/gateway/middleware"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/metrics"
	pkgmw "github.com/jasvant6thstreet/distributed-search-elastic/pkg/middleware"
)

// New builds the full gateway HTTP handler with all routes and middleware.
//
// Route table:
//
//	GET    /api/health           → service + backend status  (public)
//	POST   /api/auth/token       → issue a tenant token      (public)
//	GET    /api/metrics          → global cumulative metrics (public)
//	POST   /documents            → index one document
//	POST   /documents/batch      → bulk index
//	GET    /search               → full-text search (query params)
//	POST   /search               → full-text search (JSON body)
//	GET    /documents/{id}       → point lookup
//	DELETE /documents/{id}       → idempotent delete
//	GET    /api/stats            → per-tenant index stats
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → Timeout → Auth → RateLimit → handler
//
// Auth precedes RateLimit so a request with a bad credential is rejected
// before it is charged a permit.
func New(h *gwhandler.Handler, tokens *token.Service, limiter *ratelimit.Limiter, prom *metrics.Metrics, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("POST /api/auth/token", h.IssueToken)
	mux.HandleFunc("GET /api/metrics", h.GlobalMetrics)

	// Document API
	mux.HandleFunc("POST /documents", h.IndexDocument)
	mux.HandleFunc("POST /documents/batch", h.IndexBatch)
	mux.HandleFunc("GET /documents/{id}", h.GetDocument)
	mux.HandleFunc("DELETE /documents/{id}", h.DeleteDocument)

	// Search API
	mux.HandleFunc("GET /search", h.SearchGET)
	mux.HandleFunc("POST /search", h.SearchPOST)

	// Stats API
	mux.HandleFunc("GET /api/stats", h.TenantStats)

	var chain http.Handler = mux
	chain = gwmw.RateLimit(limiter, prom)(chain)
	chain = gwmw.Auth(tokens, prom)(chain)
	if requestTimeout > 0 {
		chain = pkgmw.Timeout(requestTimeout)(chain)
	}
	if prom != nil {
		chain = pkgmw.Metrics(prom)(chain)
	}
	chain = gwmw.CORS(gwmw.DefaultCORSConfig())(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
