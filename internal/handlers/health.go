package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const apiVersion = "1.0.0"

// HealthRouter registers the liveness endpoint.
func HealthRouter(r chi.Router) {
	r.Get("/health", Health)
}

// Health reports service liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Medical Device OCR API is running",
		"version":   apiVersion,
		"timestamp": time.Now().UnixMilli(),
	})
}
