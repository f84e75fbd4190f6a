// Package middleware provides the gateway's HTTP middleware: bearer-token
// authentication, per-tenant rate limiting, and CORS. Authentication always
// runs before rate limiting so a caller with a bad token is never charged a
// permit.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jasvant6thstreet/distributed-search-elastic/internal/auth/token"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/metrics"
)

type contextKey string

const tenantIDKey contextKey = "tenant_id"

// publicPaths are served without a credential: token issuance, health, and
// the global metrics view.
var publicPaths = map[string]struct{}{
	"/api/auth/token": {},
	"/api/health":     {},
	"/api/metrics":    {},
}

// Auth returns middleware that authenticates every non-public request via a
// bearer token. Missing, malformed, invalid, and expired credentials are all
// rejected with 401 before the request reaches any downstream component.
func Auth(tokens *token.Service, prom *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, public := publicPaths[r.URL.Path]; public {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr := extractBearer(r)
			if tokenStr == "" {
				countRejection(prom, "missing")
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			if !tokens.Validate(tokenStr) {
				if tokens.IsExpired(tokenStr) {
					countRejection(prom, "expired")
					writeError(w, http.StatusUnauthorized, "token expired")
					return
				}
				countRejection(prom, "invalid")
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			tenantID, err := tokens.TenantID(tokenStr)
			if err != nil {
				countRejection(prom, "invalid")
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), tenantIDKey, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFromContext returns the authenticated tenant identity, or "" for
// requests that bypassed authentication (public paths).
func TenantFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(tenantIDKey).(string)
	return tenantID
}

// WithTenant binds a tenant identity into a context. Used by tests and by
// internal callers that act on a tenant's behalf.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// extractBearer reads the credential from Authorization: Bearer <token>.
// No other transport is accepted.
func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func countRejection(prom *metrics.Metrics, reason string) {
	if prom != nil {
		prom.AuthRejectionsTotal.WithLabelValues(reason).Inc()
	}
}

// writeError writes a minimal JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
