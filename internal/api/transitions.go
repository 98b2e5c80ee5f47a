package api

import (
	"encoding/json"
	"net/http"

	"github.com/closlabs/flowgate/internal/events"
	"github.com/closlabs/flowgate/internal/stagegate"
)

type TransitionsHandler struct {
	bus events.Client
}

func NewTransitionsHandler(bus events.Client) *TransitionsHandler {
	return &TransitionsHandler{bus: bus}
}

type TransitionRequestBody struct {
	ProjectID string                 `json:"project_id"`
	FromStage string                 `json:"from_stage,omitempty"`
	ToStage   string                 `json:"to_stage"`
	Evidence  map[string]interface{} `json:"evidence,omitempty"`
}

// Request queues a stage transition for evaluation. The decision comes
// back on the bus as an approved or rejected event.
func (h *TransitionsHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ProjectID == "" || req.ToStage == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "project_id and to_stage required"})
		return
	}
	if stagegate.StageIndex(req.ToStage) < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown stage: " + req.ToStage})
		return
	}

	env, err := events.NewEnvelope(events.SourceStageGates, "Stage Transition Request", events.StageTransitionRequest{
		ProjectID: req.ProjectID,
		FromStage: req.FromStage,
		ToStage:   req.ToStage,
		Evidence:  req.Evidence,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to build envelope"})
		return
	}

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event bus unavailable"})
		return
	}
	if err := h.bus.Publish(events.SubjectTransitionRequest, env); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event bus unavailable"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":     "queued",
		"request_id": env.ID,
	})
}
