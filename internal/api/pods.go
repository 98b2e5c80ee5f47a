package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/closlabs/flowgate/internal/wip"
)

type PodsHandler struct {
	engine *wip.Engine
}

func NewPodsHandler(engine *wip.Engine) *PodsHandler {
	return &PodsHandler{engine: engine}
}

// Wip returns a pod's current lock census against its ceilings.
// Unknown pods report against the default limits, so the endpoint
// never 404s.
func (h *PodsHandler) Wip(w http.ResponseWriter, r *http.Request) {
	podID := chi.URLParam(r, "pod")

	census, err := h.engine.Snapshot(r.Context(), podID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, census)
}
