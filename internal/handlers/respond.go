package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dphs-ocr/apiserver/internal/apperr"
)

// Envelope is the uniform response shape shared by every endpoint.
type Envelope struct {
	Success   bool                `json:"success"`
	Data      any                 `json:"data"`
	Message   string              `json:"message"`
	Errors    []apperr.FieldError `json:"errors,omitempty"`
	Timestamp int64               `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Envelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}

// writeAppError maps a tagged application error to the wire envelope.
// This is the single place error kinds become HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	appErr := apperr.From(err)
	writeJSON(w, appErr.Status(), Envelope{
		Success:   false,
		Message:   appErr.Message,
		Errors:    appErr.Fields,
		Timestamp: time.Now().UnixMilli(),
	})
}
