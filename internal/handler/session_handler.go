package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"marketplace-gate/internal/authgate"
	"marketplace-gate/internal/models"
	sessionrepo "marketplace-gate/internal/repository/redis"
)

type SessionStore interface {
	Lookup(ctx context.Context, token string) (*models.Session, error)
	Touch(ctx context.Context, token string, session *models.Session, ttl time.Duration) error
	Revoke(ctx context.Context, token string) error
}

// SessionHandler validates the cookie the auth gate only checked for presence.
// A successful lookup slides the session forward by ttl; zero disables that.
type SessionHandler struct {
	sessions   SessionStore
	cookieName string
	ttl        time.Duration
	logger     *zap.Logger
}

func NewSessionHandler(sessions SessionStore, cookieName string, ttl time.Duration, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, cookieName: cookieName, ttl: ttl, logger: logger}
}

func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.GetSession)
	r.Post("/auth/signout", h.SignOut)
}

// GetSession returns the session behind the cookie, or 401.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondWithJSON(w, h.logger, http.StatusServiceUnavailable, errorResponse("session_store_unavailable"))
		return
	}

	cred, ok := authgate.CredentialFrom(r, h.cookieName)
	if !ok {
		respondWithJSON(w, h.logger, http.StatusUnauthorized, errorResponse("Unauthorized"))
		return
	}

	session, err := h.sessions.Lookup(r.Context(), cred.Value())
	switch {
	case errors.Is(err, sessionrepo.ErrSessionNotFound), errors.Is(err, sessionrepo.ErrSessionExpired):
		respondWithJSON(w, h.logger, http.StatusUnauthorized, errorResponse("Unauthorized"))
		return
	case err != nil:
		h.logger.Error("Session lookup failed", zap.Error(err))
		respondWithJSON(w, h.logger, http.StatusServiceUnavailable, errorResponse("session_store_unavailable"))
		return
	}

	if h.ttl > 0 {
		if err := h.sessions.Touch(r.Context(), cred.Value(), session, h.ttl); err != nil {
			h.logger.Warn("Failed to refresh session", zap.String("user_id", session.UserID), zap.Error(err))
		}
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(session, ""))
}

// SignOut revokes the session, if any, and clears the cookie.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if cred, ok := authgate.CredentialFrom(r, h.cookieName); ok && h.sessions != nil {
		if err := h.sessions.Revoke(r.Context(), cred.Value()); err != nil {
			h.logger.Warn("Failed to revoke session on sign out", zap.Error(err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(nil, "signed out"))
}
