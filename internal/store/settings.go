// Remote API configuration persisted alongside the queue. The API token is
// encrypted at rest with a device-scoped key.
package store

import (
	"database/sql"
	"time"

	"github.com/wayfound/trailbook/internal/crypto"
	"github.com/wayfound/trailbook/internal/errors"
	"github.com/wayfound/trailbook/internal/models"
)

// SettingsStore persists the remote journal API target.
type SettingsStore struct {
	db        *sql.DB
	machineID string // encryption key scope
}

// NewSettingsStore creates a SettingsStore.
func NewSettingsStore(db *sql.DB, machineID string) *SettingsStore {
	if machineID == "" {
		machineID = "default"
	}
	return &SettingsStore{db: db, machineID: machineID}
}

// SaveRemoteConfig stores the remote endpoint and token, replacing any
// previous configuration. The token is encrypted before it touches disk.
func (s *SettingsStore) SaveRemoteConfig(endpoint, token string) error {
	encrypted, err := crypto.EncryptToken(token, s.machineID)
	if err != nil {
		return errors.Wrap(errors.ErrCryptoFailed, "failed to encrypt token", err)
	}

	query := `
	INSERT INTO remote_config (id, endpoint, token_encrypted, updated_at)
	VALUES (1, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET endpoint = excluded.endpoint,
		token_encrypted = excluded.token_encrypted,
		updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, endpoint, encrypted, time.Now().Unix()); err != nil {
		return errors.Wrap(errors.ErrStorageUnavailable, "failed to save remote config", err)
	}
	return nil
}

// GetRemoteConfig returns the configured remote target with the token
// decrypted, or REMOTE_NOT_CONFIGURED when none has been saved.
func (s *SettingsStore) GetRemoteConfig() (*models.RemoteConfig, error) {
	var cfg models.RemoteConfig
	var encrypted string

	err := s.db.QueryRow(`SELECT endpoint, token_encrypted, updated_at FROM remote_config WHERE id = 1`).
		Scan(&cfg.Endpoint, &encrypted, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrRemoteNotConfigured, "no remote configured")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to read remote config", err)
	}

	token, err := crypto.DecryptToken(encrypted, s.machineID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCryptoFailed, "failed to decrypt token", err)
	}
	cfg.Token = token

	return &cfg, nil
}

// DeleteRemoteConfig removes the remote configuration.
func (s *SettingsStore) DeleteRemoteConfig() error {
	if _, err := s.db.Exec(`DELETE FROM remote_config WHERE id = 1`); err != nil {
		return errors.Wrap(errors.ErrStorageUnavailable, "failed to delete remote config", err)
	}
	return nil
}
