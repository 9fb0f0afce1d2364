// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package intake

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/streamstat-engine/internal/logging"
	"github.com/tomtom215/streamstat-engine/internal/metrics"
	"github.com/tomtom215/streamstat-engine/internal/sessions"
	"github.com/tomtom215/streamstat-engine/internal/validation"
)

// Manager is the subset of *sessions.Manager the webhook handler depends
// on.
type Manager interface {
	Ingest(ev sessions.Event) sessions.IngestResult
}

// Handler serves the webhook intake endpoint.
type Handler struct {
	manager     Manager
	hmacSecret  []byte
	recoveryErr func() bool // returns true while recovery is still in progress
}

// NewHandler creates a Handler. hmacSecret, if non-empty, requires every
// webhook request to carry a valid X-Webhook-Signature header (off by
// default).
func NewHandler(manager Manager, hmacSecret string, recovering func() bool) *Handler {
	return &Handler{manager: manager, hmacSecret: []byte(hmacSecret), recoveryErr: recovering}
}

// Webhook handles POST /api/webhook: a JSON array of events, ingested one
// at a time in array order.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if len(h.hmacSecret) > 0 {
		if !h.verifySignature(r.Header.Get("X-Webhook-Signature"), body) {
			writeError(w, http.StatusUnauthorized, "invalid webhook signature")
			return
		}
	}

	var events []WebhookEvent
	if err := json.Unmarshal(body, &events); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON: "+err.Error())
		return
	}

	for i := range events {
		if verr := validation.ValidateStruct(&events[i]); verr != nil {
			writeError(w, http.StatusBadRequest, "schema validation failed: "+verr.Error())
			return
		}
	}

	var rejected int
	for i := range events {
		ev, err := events[i].toEvent()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid event: "+err.Error())
			return
		}
		result := h.manager.Ingest(ev)
		if result.Accepted {
			metrics.IngestAcceptedTotal.WithLabelValues(string(ev.Kind)).Inc()
			continue
		}
		rejected++
		metrics.IngestRejectedTotal.WithLabelValues(string(ev.Kind), string(result.Rejection)).Inc()
		logging.Debug().Str("session_id", ev.ID).Str("rejection", string(result.Rejection)).Msg("webhook event rejected")
	}

	writeJSON(w, http.StatusOK, map[string]any{"accepted": len(events) - rejected, "rejected": rejected})
}

func (h *Handler) verifySignature(signature string, body []byte) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.hmacSecret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
