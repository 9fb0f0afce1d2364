// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamstat-engine

package intake

import "net/http"

// StatsManager is the subset of *sessions.Manager the stats handler
// depends on.
type StatsManager interface {
	ActiveBreakdown() (total int, byServer, byChannel, byCountry, byProtocol, byUAClass map[string]int64)
}

// StatsHandler serves GET /stats/active.
type StatsHandler struct {
	manager StatsManager
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(manager StatsManager) *StatsHandler {
	return &StatsHandler{manager: manager}
}

// Active handles GET /stats/active: a point-in-time breakdown of every
// currently live session across the six dimensions.
func (h *StatsHandler) Active(w http.ResponseWriter, r *http.Request) {
	total, byServer, byChannel, byCountry, byProtocol, byUAClass := h.manager.ActiveBreakdown()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":                 total,
		"by_server":             byServer,
		"by_channel":            byChannel,
		"by_country":            byCountry,
		"by_protocol":           byProtocol,
		"by_user_agent_class":   byUAClass,
	})
}
