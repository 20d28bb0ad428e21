// Package logging provides unit tests for the structured logger.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// newTestLogger builds a logger writing into a buffer, bypassing the global.
func newTestLogger(minLevel LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Logger{out: &buf, minLevel: minLevel}, &buf
}

// TestLogEmitsJSON tests that entries are single-line JSON.
func TestLogEmitsJSON(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)

	logger.Info("queue drained", map[string]interface{}{"synced": 3})

	line := strings.TrimSpace(buf.String())
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("Log line is not valid JSON: %v (%s)", err, line)
	}

	if entry.Level != "INFO" {
		t.Errorf("Expected INFO level, got %s", entry.Level)
	}
	if entry.Message != "queue drained" {
		t.Errorf("Expected message, got %s", entry.Message)
	}
	if entry.Context["synced"] != float64(3) {
		t.Errorf("Expected context synced=3, got %v", entry.Context["synced"])
	}
}

// TestLevelFiltering tests that entries below the minimum level are dropped.
func TestLevelFiltering(t *testing.T) {
	logger, buf := newTestLogger(LevelWarn)

	logger.Debug("noise")
	logger.Info("more noise")
	if buf.Len() != 0 {
		t.Errorf("Expected debug/info to be filtered, got %s", buf.String())
	}

	logger.Warn("backlog growing")
	if buf.Len() == 0 {
		t.Error("Expected warn to be logged")
	}
}

// TestErrorField tests that the error string is included.
func TestErrorField(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)

	logger.Error("delivery failed", errors.New("connection refused"))

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if entry.Error != "connection refused" {
		t.Errorf("Expected error field, got %q", entry.Error)
	}
}

// TestContextMerging tests merging of multiple context maps.
func TestContextMerging(t *testing.T) {
	merged := mergeContext(
		map[string]interface{}{"a": 1},
		map[string]interface{}{"b": 2},
	)

	if merged["a"] != 1 || merged["b"] != 2 {
		t.Errorf("Expected merged context, got %v", merged)
	}

	if mergeContext() != nil {
		t.Error("Expected nil for empty context")
	}
}
