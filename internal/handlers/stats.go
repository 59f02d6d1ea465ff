package handlers

import (
	"net/http"

	"github.com/dphs-ocr/apiserver/internal/services"
	"github.com/dphs-ocr/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// StatsHandler serves aggregate statistics over uploads and test records.
type StatsHandler struct {
	statsService *services.StatsService
}

func NewStatsHandler(statsService *services.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// StatsRouter registers statistics routes on the given router.
func StatsRouter(r chi.Router, statsService *services.StatsService) {
	handler := NewStatsHandler(statsService)

	r.Get("/stats", handler.GetStats)
}

// GetStats returns the aggregate statistics view, optionally scoped by
// userId and panelId query parameters.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := types.StatsFilter{
		UserID:  query.Get("userId"),
		PanelID: query.Get("panelId"),
	}

	stats, err := h.statsService.Get(r.Context(), filter)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, stats, "Statistics retrieved successfully")
}
