// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package intake

import "net/http"

// HealthHandler serves GET /health. It reports 503 while crash recovery
// is still in progress and 200 once the server is accepting webhook
// traffic normally.
type HealthHandler struct {
	recovering func() bool
}

// NewHealthHandler creates a HealthHandler. recovering should return true
// until Recover has completed.
func NewHealthHandler(recovering func() bool) *HealthHandler {
	return &HealthHandler{recovering: recovering}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.recovering != nil && h.recovering() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "recovering"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
