// REST handlers for the offline entry queue.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wayfound/trailbook/internal/errors"
	"github.com/wayfound/trailbook/internal/logging"
	"github.com/wayfound/trailbook/internal/media"
	"github.com/wayfound/trailbook/internal/models"
	"github.com/wayfound/trailbook/internal/status"
	"github.com/wayfound/trailbook/internal/store"
	"github.com/wayfound/trailbook/internal/uuid"
)

// WSQueueBroadcaster pushes queue changes to connected shells.
type WSQueueBroadcaster interface {
	BroadcastQueueUpdated(pendingCount int)
}

// EntriesHandler handles offline capture and queue inspection.
type EntriesHandler struct {
	queue  *store.QueueStore
	facade *status.Facade
	wsHub  WSQueueBroadcaster // Set via SetWebSocketHub
}

// NewEntriesHandler creates a new EntriesHandler.
func NewEntriesHandler(queue *store.QueueStore, facade *status.Facade) *EntriesHandler {
	return &EntriesHandler{queue: queue, facade: facade}
}

// SetWebSocketHub sets the WebSocket hub for broadcasting queue events.
func (h *EntriesHandler) SetWebSocketHub(wsHub WSQueueBroadcaster) {
	h.wsHub = wsHub
}

// createRequest is the capture payload from the shell.
type createRequest struct {
	Payload models.EntryPayload   `json:"payload"`
	Media   []models.PendingMedia `json:"media"`
}

// mediaView is a queued media item without its full-resolution bytes.
// The list endpoint serves the queue preview; full bytes only travel to the
// remote store during a drain.
type mediaView struct {
	ID               models.UUID `json:"id"`
	Caption          string      `json:"caption"`
	Order            int         `json:"order"`
	MimeType         string      `json:"mime_type"`
	OriginalFileName string      `json:"original_file_name"`
	SizeBytes        int         `json:"size_bytes"`
	ThumbnailBytes   []byte      `json:"thumbnail_bytes,omitempty"`
}

// entryView is a queued entry as shown in the offline queue list.
type entryView struct {
	ID           models.UUID         `json:"id"`
	CreatedAt    int64               `json:"created_at"`
	Payload      models.EntryPayload `json:"payload"`
	Media        []mediaView         `json:"media"`
	Status       models.EntryStatus  `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	RetryCount   int                 `json:"retry_count"`
}

func toEntryView(entry *models.PendingEntry) entryView {
	views := make([]mediaView, 0, len(entry.Media))
	for _, m := range entry.MediaInOrder() {
		views = append(views, mediaView{
			ID:               m.ID,
			Caption:          m.Caption,
			Order:            m.Order,
			MimeType:         m.MimeType,
			OriginalFileName: m.OriginalFileName,
			SizeBytes:        len(m.Bytes),
			ThumbnailBytes:   m.ThumbnailBytes,
		})
	}
	return entryView{
		ID:           entry.ID,
		CreatedAt:    entry.CreatedAt,
		Payload:      entry.Payload,
		Media:        views,
		Status:       entry.Status,
		ErrorMessage: entry.ErrorMessage,
		RetryCount:   entry.RetryCount,
	}
}

// Create handles POST /api/queue
// Persists a captured entry; storage failures surface synchronously so the
// shell can tell the user the save did not happen.
func (h *EntriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request createRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, errors.ErrInvalid, "Invalid request body")
		return
	}

	if request.Payload.Title == "" {
		writeError(w, http.StatusBadRequest, errors.ErrValidation, "title is required")
		return
	}
	for i := range request.Media {
		if len(request.Media[i].Bytes) == 0 {
			writeError(w, http.StatusBadRequest, errors.ErrValidation, "media items must carry bytes")
			return
		}
		media.Prepare(&request.Media[i])
	}

	entry, err := h.queue.Put(&models.PendingEntry{
		Payload: request.Payload,
		Media:   request.Media,
	})
	if err != nil {
		logging.Error("Failed to queue entry", err)
		writeAppError(w, err)
		return
	}

	h.notifyQueueChanged()
	writeJSON(w, http.StatusCreated, toEntryView(entry))
}

// List handles GET /api/queue
// Returns all queued entries newest first.
func (h *EntriesHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.queue.ListAll()
	if err != nil {
		writeAppError(w, err)
		return
	}

	views := make([]entryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, toEntryView(entry))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": views,
		"count":   len(views),
	})
}

// Count handles GET /api/queue/count
func (h *EntriesHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.queue.CountBacklog()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": count})
}

// Delete handles DELETE /api/queue/{id}
// Explicit user deletion of a queued entry before it syncs.
func (h *EntriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !uuid.IsValid(id) {
		writeError(w, http.StatusBadRequest, errors.ErrInvalid, "invalid entry ID")
		return
	}

	if err := h.queue.Remove(models.UUID(id)); err != nil {
		writeAppError(w, err)
		return
	}

	h.notifyQueueChanged()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
	})
}

// notifyQueueChanged refreshes the facade count and pushes it to shells.
func (h *EntriesHandler) notifyQueueChanged() {
	count, err := h.facade.RefreshPendingCount()
	if err != nil {
		logging.Warn("Failed to refresh pending count",
			map[string]interface{}{"error": err.Error()})
		return
	}
	if h.wsHub != nil {
		h.wsHub.BroadcastQueueUpdated(count)
	}
}
