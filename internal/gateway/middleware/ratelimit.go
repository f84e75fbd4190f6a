package middleware

import (
	"fmt"
	"net/http"

	"github.com/jasvant6thstreet/distributed-search-elastic/internal/auth/ratelimit"
	"github.com/jasvant6thstreet/distributed-search-elastic/pkg/metrics"
)

// RateLimit returns middleware that charges one permit per authenticated
// request against the tenant's bucket. It must sit after Auth in the chain:
// requests without a tenant in context are public paths and pass through
// unmetered. The 429 response names the tenant so operators can attribute
// the rejection.
func RateLimit(limiter *ratelimit.Limiter, prom *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := TenantFromContext(r.Context())
			if tenantID == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.TryAcquire(tenantID) {
				if prom != nil {
					prom.RateLimitedTotal.WithLabelValues(tenantID).Inc()
				}
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"rate limit exceeded","tenantId":%q}`, tenantID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
