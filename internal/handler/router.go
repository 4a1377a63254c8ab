package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"marketplace-gate/internal/authgate"
	"marketplace-gate/internal/util"
)

// HealthChecker reports per-dependency failures; an empty map is healthy.
type HealthChecker interface {
	HealthCheck(ctx context.Context) map[string]error
}

type RouterOptions struct {
	Gate           *authgate.Gate
	Limiter        *RateLimiter
	Sessions       SessionStore
	SessionCookie  string
	SessionTTL     time.Duration
	Health         HealthChecker
	AllowedOrigins []string
	RequireHTTPS   bool
	Logger         *zap.Logger
}

func exactOrigins(origins []string, logger *zap.Logger) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if strings.Contains(origin, "*") {
			logger.Warn("Ignoring wildcard CORS origin for credentialed requests", zap.String("origin", origin))
			continue
		}
		out = append(out, origin)
	}
	return out
}

// requireHTTPS rejects any request that wasn't made over TLS
func requireHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUpgradeRequired)
			_, _ = w.Write([]byte(`{"error":"https required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter wires the auth gate in front of every route and the rate limiter
// in front of the public form endpoints.
func NewRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(nil, nil, logger)
	}

	router := chi.NewRouter()

	if opts.RequireHTTPS {
		router.Use(requireHTTPS)
	}

	router.Use(middleware.RequestID)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Cross-origin requests carry the session cookie, so only exact origins
	// are honoured. With none configured the router stays same-origin.
	if origins := exactOrigins(opts.AllowedOrigins, logger); len(origins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	if opts.Gate != nil {
		router.Use(opts.Gate.Middleware)
	}

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, logger, http.StatusOK, map[string]string{"status": "healthy", "service": "marketplace-gate"})
	})
	router.Get("/health/ready", readinessHandler(opts.Health, logger))

	sessions := NewSessionHandler(opts.Sessions, opts.SessionCookie, opts.SessionTTL, logger)
	marketplace := NewMarketplaceHandler(limiter, logger)

	router.Route("/api", func(r chi.Router) {
		sessions.RegisterRoutes(r)
		marketplace.RegisterRoutes(r)
	})

	pages := pageHandler(logger)
	router.Get("/", pages)
	router.Get("/about", pages)
	router.Get("/services", pages)
	router.Get("/auth/signin", pages)
	for _, area := range []string{"/dashboard", "/profile", "/admin"} {
		router.Get(area, pages)
		router.Get(area+"/*", pages)
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, logger, http.StatusNotFound, map[string]string{"error": "endpoint not found"})
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, logger, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	return router
}

func readinessHandler(health HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health == nil {
			respondWithJSON(w, logger, http.StatusOK, map[string]string{"status": "ready"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		failures := health.HealthCheck(ctx)
		if len(failures) == 0 {
			respondWithJSON(w, logger, http.StatusOK, map[string]string{"status": "ready"})
			return
		}

		details := make(map[string]string, len(failures))
		for name, err := range failures {
			details[name] = err.Error()
		}
		logger.Warn("Readiness check failed", zap.Any("failures", details))
		respondWithJSON(w, logger, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "unavailable",
			"failures": details,
		})
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("request_id", middleware.GetReqID(r.Context())),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
