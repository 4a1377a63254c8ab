package authgate

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeUnauthorized
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

type Decision struct {
	Outcome    Outcome
	Class      PathClass
	Prefix     string
	RedirectTo string
	Bypassed   bool
}

func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

type Config struct {
	SecuredPrefixes []string
	SessionCookie   string
	APIPrefix       string
	SignInPath      string
	// Bypass lets every request through. Development only.
	Bypass bool
}

type DenyHook func(r *http.Request, d Decision)

type Gate struct {
	cfg        Config
	classifier *Classifier
	logger     *zap.Logger
	onDeny     DenyHook
}

type Option func(*Gate)

// WithDenyHook registers a callback run for every denied request.
func WithDenyHook(hook DenyHook) Option {
	return func(g *Gate) {
		g.onDeny = hook
	}
}

func New(cfg Config, logger *zap.Logger, opts ...Option) *Gate {
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/"
	}
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/auth/signin"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Gate{
		cfg:        cfg,
		classifier: NewClassifier(cfg.SecuredPrefixes),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(g)
	}

	if cfg.Bypass {
		g.logger.Warn("auth gate bypass is ENABLED: secured paths are served without a session cookie",
			zap.Strings("secured_prefixes", g.classifier.Prefixes()))
	} else {
		g.logger.Info("auth gate enabled",
			zap.Strings("secured_prefixes", g.classifier.Prefixes()),
			zap.String("session_cookie", cfg.SessionCookie))
	}

	return g
}

// Decide classifies r and applies the cookie-presence rule. A request the
// gate cannot inspect is denied.
func (g *Gate) Decide(r *http.Request) (d Decision) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("auth gate fault, denying request", zap.Any("panic", rec))
			d = Decision{Outcome: OutcomeUnauthorized, Class: ClassSecured}
		}
	}()

	if g.cfg.Bypass {
		return Decision{Outcome: OutcomeAllow, Bypassed: true}
	}
	if r == nil || r.URL == nil {
		return Decision{Outcome: OutcomeUnauthorized, Class: ClassSecured}
	}

	path := r.URL.Path
	prefix, secured := g.classifier.Match(path)
	if !secured {
		return Decision{Outcome: OutcomeAllow, Class: ClassOpen}
	}

	if _, ok := CredentialFrom(r, g.cfg.SessionCookie); ok {
		return Decision{Outcome: OutcomeAllow, Class: ClassSecured, Prefix: prefix}
	}

	if g.IsAPIPath(path) {
		return Decision{Outcome: OutcomeUnauthorized, Class: ClassSecured, Prefix: prefix}
	}

	return Decision{
		Outcome:    OutcomeRedirect,
		Class:      ClassSecured,
		Prefix:     prefix,
		RedirectTo: g.signInURL(r.URL),
	}
}

func (g *Gate) IsAPIPath(path string) bool {
	return strings.HasPrefix(path, g.cfg.APIPrefix)
}

// Middleware enforces Decide in front of next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Decide(r)
		if d.Allowed() {
			next.ServeHTTP(w, r)
			return
		}

		if g.onDeny != nil {
			g.onDeny(r, d)
		}
		g.logger.Debug("auth gate denied request",
			zap.String("path", requestPath(r)),
			zap.String("outcome", d.Outcome.String()),
			zap.String("prefix", d.Prefix))

		switch d.Outcome {
		case OutcomeRedirect:
			http.Redirect(w, r, d.RedirectTo, http.StatusTemporaryRedirect)
		default:
			writeUnauthorized(w)
		}
	})
}

func (g *Gate) signInURL(u *url.URL) string {
	callback := u.Path
	if u.RawQuery != "" {
		callback += "?" + u.RawQuery
	}
	q := url.Values{}
	q.Set("callbackUrl", callback)
	return g.cfg.SignInPath + "?" + q.Encode()
}

func requestPath(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	return r.URL.Path
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
