package handler

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxFormBody = 64 << 10

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type QuoteRequest struct {
	ServiceID string `json:"service_id"`
	Postcode  string `json:"postcode"`
	Notes     string `json:"notes,omitempty"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MarketplaceHandler holds the public form endpoints that sit behind the rate
// limiter. Persisting and routing the submissions happens elsewhere; these
// handlers validate and acknowledge.
type MarketplaceHandler struct {
	limiter *RateLimiter
	logger  *zap.Logger
}

func NewMarketplaceHandler(limiter *RateLimiter, logger *zap.Logger) *MarketplaceHandler {
	return &MarketplaceHandler{limiter: limiter, logger: logger}
}

func (h *MarketplaceHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.limiter.Middleware)
		r.Post("/contact", h.Contact)
		r.Post("/bookings/quote", h.Quote)
		r.Post("/auth/signin", h.SignIn)
	})

	r.Get("/dashboard/summary", h.securedStub("dashboard"))
	r.Get("/profile", h.securedStub("profile"))
	r.Get("/admin/stats", h.securedStub("admin"))
}

func (h *MarketplaceHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !h.decode(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" || req.Message == "" {
		respondWithJSON(w, h.logger, http.StatusBadRequest, errorResponse("name_and_message_required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondWithJSON(w, h.logger, http.StatusBadRequest, errorResponse("invalid_email"))
		return
	}

	h.accept(w, "contact")
}

func (h *MarketplaceHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := uuid.Parse(req.ServiceID); err != nil {
		respondWithJSON(w, h.logger, http.StatusBadRequest, errorResponse("invalid_service_id"))
		return
	}
	if strings.TrimSpace(req.Postcode) == "" {
		respondWithJSON(w, h.logger, http.StatusBadRequest, errorResponse("postcode_required"))
		return
	}

	h.accept(w, "quote")
}

// SignIn only throttles and validates attempts; issuing the session cookie
// belongs to the identity provider.
func (h *MarketplaceHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondWithJSON(w, h.logger, http.StatusBadRequest, errorResponse("invalid_email"))
		return
	}
	if req.Password == "" {
		respondWithJSON(w, h.logger, http.StatusBadRequest, errorResponse("password_required"))
		return
	}

	h.accept(w, "signin")
}

func (h *MarketplaceHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.logger.Debug("Invalid request body", zap.Error(err), zap.String("path", r.URL.Path))
		respondWithJSON(w, h.logger, http.StatusBadRequest, errorResponse("invalid_body"))
		return false
	}
	return true
}

func (h *MarketplaceHandler) accept(w http.ResponseWriter, kind string) {
	ref := uuid.NewString()
	h.logger.Info("Submission accepted", zap.String("kind", kind), zap.String("reference", ref))
	respondWithJSON(w, h.logger, http.StatusAccepted, successResponse(map[string]string{"reference": ref}, kind+" received"))
}

func (h *MarketplaceHandler) securedStub(area string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, h.logger, http.StatusOK, successResponse(map[string]string{"area": area}, ""))
	}
}
