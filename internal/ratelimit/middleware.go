package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/backend-pricing/internal/common"
)

// Throttled counts requests rejected by a limiter, labeled by scope.
var Throttled = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pricing",
		Name:      "ratelimit_throttled_total",
		Help:      "Requests rejected because a rate limit window was full",
	},
	[]string{"scope"},
)

func init() {
	prometheus.MustRegister(Throttled)
}

// Config describes one limited scope: how to derive the key and the window.
type Config struct {
	// Scope names the limit in metrics, e.g. "cart".
	Scope  string
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces a limit before delegating to the next handler.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// Middleware applies the limit. Limiter failures fail open: pricing must
// keep answering when Redis does not.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		decision, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		limit := h.Config.Max
		if limit < 0 {
			limit = 0
		}
		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			Throttled.WithLabelValues(h.scope()).Inc()
			common.JSONError(w, http.StatusTooManyRequests, common.CodeRateLimited, "rate limit exceeded, retry later", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h Handler) scope() string {
	if h.Config.Scope == "" {
		return "default"
	}
	return h.Config.Scope
}
