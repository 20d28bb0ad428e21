// Package models provides unit tests for the trailbook data models.
package models

import (
	"bytes"
	"encoding/json"
	"testing"
)

// TestUUIDScan tests scanning database values into UUID.
func TestUUIDScan(t *testing.T) {
	var u UUID

	if err := u.Scan("abc-123"); err != nil {
		t.Fatalf("Scan string failed: %v", err)
	}
	if u != "abc-123" {
		t.Errorf("Expected abc-123, got %s", u)
	}

	if err := u.Scan([]byte("def-456")); err != nil {
		t.Fatalf("Scan bytes failed: %v", err)
	}
	if u != "def-456" {
		t.Errorf("Expected def-456, got %s", u)
	}

	if err := u.Scan(nil); err != nil {
		t.Fatalf("Scan nil failed: %v", err)
	}
	if u != "" {
		t.Errorf("Expected empty UUID after nil scan, got %s", u)
	}

	if err := u.Scan(42); err == nil {
		t.Error("Expected error scanning int into UUID")
	}
}

// TestEntryStatusValid tests status validation.
func TestEntryStatusValid(t *testing.T) {
	for _, s := range []EntryStatus{StatusPending, StatusSyncing, StatusError} {
		if !s.Valid() {
			t.Errorf("Expected %s to be valid", s)
		}
	}
	if EntryStatus("synced").Valid() {
		t.Error("Expected synced to be invalid: delivered entries are deleted, not marked")
	}
}

// TestMediaInOrder tests that media is returned in ascending Order
// regardless of insertion order.
func TestMediaInOrder(t *testing.T) {
	entry := &PendingEntry{
		Media: []PendingMedia{
			{ID: "m2", Order: 2},
			{ID: "m0", Order: 0},
			{ID: "m1", Order: 1},
		},
	}

	ordered := entry.MediaInOrder()

	for i, m := range ordered {
		if m.Order != i {
			t.Errorf("Position %d: expected order %d, got %d", i, i, m.Order)
		}
	}

	// Original slice must not be reordered
	if entry.Media[0].ID != "m2" {
		t.Error("MediaInOrder must not mutate the entry's media slice")
	}
}

// TestValidateMediaOrders tests detection of duplicate order values.
func TestValidateMediaOrders(t *testing.T) {
	entry := &PendingEntry{
		Media: []PendingMedia{{Order: 0}, {Order: 1}},
	}
	if err := entry.ValidateMediaOrders(); err != nil {
		t.Errorf("Expected unique orders to validate, got %v", err)
	}

	entry.Media = append(entry.Media, PendingMedia{Order: 1})
	if err := entry.ValidateMediaOrders(); err == nil {
		t.Error("Expected error for duplicate media order")
	}
}

// TestPendingMediaJSONRoundTrip tests that media bytes survive the text-safe
// JSON encoding used by the durable store.
func TestPendingMediaJSONRoundTrip(t *testing.T) {
	original := PendingMedia{
		ID:               "media-1",
		Caption:          "Summit view",
		Order:            0,
		Bytes:            []byte{0x00, 0xFF, 0x89, 0x50, 0x4E, 0x47},
		MimeType:         "image/png",
		OriginalFileName: "summit.png",
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded PendingMedia
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if !bytes.Equal(decoded.Bytes, original.Bytes) {
		t.Errorf("Bytes mismatch after round trip: got %v, want %v", decoded.Bytes, original.Bytes)
	}
	if decoded.MimeType != original.MimeType {
		t.Errorf("MimeType mismatch: got %s, want %s", decoded.MimeType, original.MimeType)
	}
}
