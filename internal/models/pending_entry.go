// Package models provides data model definitions for the trailbook engine.
package models

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// EntryStatus is the local lifecycle state of a queued entry.
//
// There is no terminal "synced" status: a delivered entry is deleted from
// the store, so absence is the synced signal.
type EntryStatus string

const (
	StatusPending EntryStatus = "pending"
	StatusSyncing EntryStatus = "syncing"
	StatusError   EntryStatus = "error"
)

// Valid reports whether s is a known entry status.
func (s EntryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSyncing, StatusError:
		return true
	}
	return false
}

// EntryPayload holds the journal entry's domain fields exactly as they will
// be submitted to the remote store.
type EntryPayload struct {
	Title          string  `json:"title"`
	Narrative      string  `json:"narrative"`
	EntryDate      int64   `json:"entry_date"`
	DistanceKm     float64 `json:"distance_km,omitempty"`
	ElevationGainM float64 `json:"elevation_gain_m,omitempty"`
	Latitude       float64 `json:"latitude,omitempty"`
	Longitude      float64 `json:"longitude,omitempty"`
	Activity       string  `json:"activity,omitempty"`
	Tags           string  `json:"tags,omitempty"` // Comma-separated
}

// PendingMedia is a single attachment captured offline.
//
// Bytes carries the full attachment content. JSON marshaling base64-encodes
// it, which is what makes the persisted record a self-contained, text-safe
// blob that survives serialization round-trips and device restarts.
type PendingMedia struct {
	ID               UUID   `json:"id"`
	Caption          string `json:"caption"`
	Order            int    `json:"order"`
	Bytes            []byte `json:"bytes"`
	MimeType         string `json:"mime_type"`
	OriginalFileName string `json:"original_file_name"`
	ThumbnailBytes   []byte `json:"thumbnail_bytes,omitempty"`
}

// PendingEntry is a journal entry awaiting delivery to the remote store.
type PendingEntry struct {
	ID           UUID           `db:"id" json:"id"`
	CreatedAt    int64          `db:"created_at" json:"created_at"`
	Payload      EntryPayload   `db:"payload" json:"payload"`
	Media        []PendingMedia `db:"media" json:"media"`
	Status       EntryStatus    `db:"status" json:"status"`
	ErrorMessage string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int            `db:"retry_count" json:"retry_count"`
}

// TableName returns the table name for PendingEntry.
func (PendingEntry) TableName() string {
	return "pending_entries"
}

// CreatedAtTime returns CreatedAt as time.Time.
func (e *PendingEntry) CreatedAtTime() time.Time {
	return time.Unix(e.CreatedAt, 0)
}

// MediaInOrder returns the entry's media sorted by ascending Order.
// Upload order to the remote store must follow this sequence regardless of
// the order attachments were added during capture.
func (e *PendingEntry) MediaInOrder() []PendingMedia {
	media := make([]PendingMedia, len(e.Media))
	copy(media, e.Media)
	sort.Slice(media, func(i, j int) bool {
		return media[i].Order < media[j].Order
	})
	return media
}

// ValidateMediaOrders returns an error if two media items share an Order
// value. Order uniqueness within one entry is a store invariant.
func (e *PendingEntry) ValidateMediaOrders() error {
	seen := make(map[int]bool, len(e.Media))
	for _, m := range e.Media {
		if seen[m.Order] {
			return fmt.Errorf("duplicate media order %d", m.Order)
		}
		seen[m.Order] = true
	}
	return nil
}

// RemoteConfig holds the remote journal API target for sync.
// The token is persisted encrypted; this struct carries the decrypted form.
type RemoteConfig struct {
	Endpoint  string `json:"endpoint"`
	Token     string `json:"token"`
	UpdatedAt int64  `json:"updated_at"`
}
