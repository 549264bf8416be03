package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/inventra-labs/inventra/common/httputil"
	"github.com/inventra-labs/inventra/common/logging"
	"github.com/inventra-labs/inventra/gateway/internal/metrics"
)

// Middleware limits requests per client IP under scope. Limiter errors let
// the request through so a Redis outage never locks users out.
func Middleware(limiter Limiter, scope string, retryAfter time.Duration, logger *logging.Logger) func(http.HandlerFunc) http.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ip := httputil.GetClientIP(r)
			allowed, err := limiter.Allow(r.Context(), scope+":"+ip)
			if err != nil {
				logger.WarnContext(r.Context(), "Rate limiter unavailable, allowing request",
					logging.IP(ip), logging.Error(err))
				next(w, r)
				return
			}
			if !allowed {
				metrics.RateLimitHits.WithLabelValues(scope).Inc()
				logger.InfoContext(r.Context(), "Rate limit exceeded",
					logging.IP(ip), logging.Path(r.URL.Path))
				if secs := int(retryAfter.Seconds()); secs > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				httputil.WriteJSONAPIError(w, http.StatusTooManyRequests, "rate_limited",
					"Too Many Requests", "Too many attempts, try again later")
				return
			}
			next(w, r)
		}
	}
}
