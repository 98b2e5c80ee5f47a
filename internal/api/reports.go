package api

import (
	"net/http"

	"github.com/closlabs/flowgate/internal/report"
)

type ReportsHandler struct {
	aggregator *report.Aggregator
}

func NewReportsHandler(aggregator *report.Aggregator) *ReportsHandler {
	return &ReportsHandler{aggregator: aggregator}
}

// Daily triggers the daily unblock digest out of rhythm and returns it.
func (h *ReportsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	rep, err := h.aggregator.DailyUnblock(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Weekly triggers the weekly demo digest out of rhythm and returns it.
func (h *ReportsHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	rep, err := h.aggregator.WeeklyDemo(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
