// REST handlers for sync status, manual drains and connectivity reporting.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wayfound/trailbook/internal/connectivity"
	"github.com/wayfound/trailbook/internal/errors"
	"github.com/wayfound/trailbook/internal/status"
)

// WSSyncBroadcaster pushes drain lifecycle events to connected shells.
type WSSyncBroadcaster interface {
	BroadcastSyncStarted()
	BroadcastSyncCompleted(synced, failed int, duration string)
	BroadcastSyncFailed(synced, failed int)
}

// SyncHandler handles sync operations and the connectivity boundary.
type SyncHandler struct {
	facade  *status.Facade
	monitor *connectivity.Monitor
	wsHub   WSSyncBroadcaster // Set via SetWebSocketHub
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(facade *status.Facade, monitor *connectivity.Monitor) *SyncHandler {
	return &SyncHandler{facade: facade, monitor: monitor}
}

// SetWebSocketHub sets the WebSocket hub for broadcasting sync events.
func (h *SyncHandler) SetWebSocketHub(wsHub WSSyncBroadcaster) {
	h.wsHub = wsHub
}

// Status handles GET /api/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.facade.Snapshot())
}

// TriggerSync handles POST /api/sync/now
// Drains the backlog and returns the cycle result. A drain already in
// flight is joined, not duplicated.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.wsHub != nil {
		h.wsHub.BroadcastSyncStarted()
	}

	result := h.facade.SyncPending(r.Context())

	if h.wsHub != nil {
		if result.Success {
			h.wsHub.BroadcastSyncCompleted(result.SyncedCount, result.FailedCount, result.Duration)
		} else {
			h.wsHub.BroadcastSyncFailed(result.SyncedCount, result.FailedCount)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// SetConnectivity handles PUT /api/connectivity
// The shell reports its network-presence primitive here; the monitor turns
// it into edge notifications.
func (h *SyncHandler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Online *bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.Online == nil {
		writeError(w, http.StatusBadRequest, errors.ErrInvalid, "body must carry an online boolean")
		return
	}

	h.monitor.SetOnline(*request.Online)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"online": *request.Online,
	})
}

// Health handles GET /api/health
func (h *SyncHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "trailbook-journald",
	})
}
