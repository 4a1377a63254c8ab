package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"marketplace-gate/internal/events"
	"marketplace-gate/internal/models"
	"marketplace-gate/internal/ratelimit"
)

// RateLimiter wraps individual handlers with the per-client request counter.
type RateLimiter struct {
	store   *ratelimit.Store
	emitter *events.Emitter
	logger  *zap.Logger
}

func NewRateLimiter(store *ratelimit.Store, emitter *events.Emitter, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{store: store, emitter: emitter, logger: logger}
}

// Middleware answers 429 once the client key has used up its window.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ratelimit.DeriveKey(r.Header)
		decision := l.store.Decide(key)

		if l.store != nil {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.store.MaxRequests()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.ResetAt.IsZero() {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
			}
		}

		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		if decision.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
		}

		l.emitter.Emit(models.NewGateEvent(models.EventRateLimited, key, r.Method, r.URL.Path, middleware.GetReqID(r.Context())))
		l.logger.Info("Request rate limited",
			zap.String("key", key),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))

		respondWithJSON(w, l.logger, http.StatusTooManyRequests, errorResponse("rate_limited"))
	})
}
