package handler

import (
	"net/http"

	"go.uber.org/zap"
)

// pageHandler answers page routes with a small descriptor. The UI renders
// from its own bundle; this keeps the gate's redirects testable end to end.
func pageHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, logger, http.StatusOK, map[string]string{"page": r.URL.Path})
	}
}
