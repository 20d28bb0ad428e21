// REST handlers for remote journal store configuration.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wayfound/trailbook/internal/errors"
	"github.com/wayfound/trailbook/internal/store"
)

// SettingsHandler handles the remote endpoint and token configuration.
// Tokens are stored encrypted and never returned to the shell.
type SettingsHandler struct {
	settings *store.SettingsStore
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settings *store.SettingsStore) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetRemote handles GET /api/settings/remote
// Returns the configured endpoint with the token redacted.
func (h *SettingsHandler) GetRemote(w http.ResponseWriter, r *http.Request) {
	config, err := h.settings.GetRemoteConfig()
	if err != nil {
		if errors.Is(err, errors.ErrRemoteNotConfigured) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"configured": false,
			})
			return
		}
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"configured": true,
		"endpoint":   config.Endpoint,
		"token":      "***REDACTED***",
		"updated_at": config.UpdatedAt,
	})
}

// SetRemote handles POST /api/settings/remote
// Saves the remote endpoint and an encrypted API token.
func (h *SettingsHandler) SetRemote(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Endpoint string `json:"endpoint"`
		Token    string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, errors.ErrInvalid, "Invalid request body")
		return
	}
	if request.Endpoint == "" {
		writeError(w, http.StatusBadRequest, errors.ErrValidation, "endpoint is required")
		return
	}
	if request.Token == "" {
		writeError(w, http.StatusBadRequest, errors.ErrValidation, "token is required")
		return
	}

	if err := h.settings.SaveRemoteConfig(request.Endpoint, request.Token); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Remote configuration saved",
	})
}

// DeleteRemote handles DELETE /api/settings/remote
func (h *SettingsHandler) DeleteRemote(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.DeleteRemoteConfig(); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Remote configuration removed",
	})
}
