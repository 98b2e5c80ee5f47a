package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/closlabs/flowgate/internal/events"
)

// maxWebhookBody caps GitHub payloads at 5 MiB.
const maxWebhookBody = 5 << 20

type WebhookHandler struct {
	bus    events.Client
	secret string
	logger *slog.Logger
}

func NewWebhookHandler(bus events.Client, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{bus: bus, secret: secret, logger: logger}
}

// Handle ingests a GitHub webhook delivery. The signature is checked
// against the raw body before anything is parsed; every event type is
// wrapped and published as-is, classification happens downstream.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	if h.secret != "" && !verifySignature(h.secret, body, r.Header.Get("X-Hub-Signature-256")) {
		h.logger.Warn("webhook signature mismatch", "delivery", r.Header.Get("X-GitHub-Delivery"))
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid signature"})
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "X-GitHub-Event header required"})
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}

	env, err := events.NewEnvelope(events.SourceGitHubWebhook, events.Label(events.Kind(eventType)), payload)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to build envelope"})
		return
	}

	if h.bus != nil {
		if err := h.bus.Publish(events.SubjectGitHub(eventType), env); err != nil {
			h.logger.Error("failed to publish webhook event", "event_type", eventType, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event bus unavailable"})
			return
		}
	}

	h.logger.Info("webhook accepted",
		"event_type", eventType,
		"delivery", r.Header.Get("X-GitHub-Delivery"),
		"event_id", env.ID)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":     "accepted",
		"event_type": eventType,
		"event_id":   env.ID,
	})
}

// verifySignature checks GitHub's sha256 HMAC header against the raw
// request body in constant time.
func verifySignature(secret string, body []byte, header string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
