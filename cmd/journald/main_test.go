// Package main provides daemon wiring tests.
package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wayfound/trailbook/internal/connectivity"
	"github.com/wayfound/trailbook/internal/status"
	"github.com/wayfound/trailbook/internal/store"
	"github.com/wayfound/trailbook/internal/sync"
)

// buildTestRouter wires a router over a throwaway store, without a hub.
func buildTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrator := store.NewMigrator(db.DB)
	if err := migrator.Initialize(); err != nil {
		t.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	queue, err := store.NewQueueStore(db.DB)
	if err != nil {
		t.Fatalf("Failed to create queue store: %v", err)
	}
	t.Cleanup(func() { queue.Close() })

	monitor := connectivity.NewMonitor(false)
	orchestrator := sync.NewOrchestrator(queue, notConfigured{}, monitor)
	facade := status.NewFacade(queue, orchestrator, monitor)
	t.Cleanup(facade.Close)

	settings := store.NewSettingsStore(db.DB, "test-machine")
	return buildRouter(queue, facade, monitor, settings, nil)
}

// TestRouterServesHealth tests the wired health endpoint.
func TestRouterServesHealth(t *testing.T) {
	router := buildTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "trailbook-journald") {
		t.Errorf("Unexpected health body: %s", rec.Body.String())
	}
}

// TestRouterUnknownRouteIs404 tests that unwired paths fall through.
func TestRouterUnknownRouteIs404(t *testing.T) {
	router := buildTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

// TestServeCommandRegistered tests the CLI wiring.
func TestServeCommandRegistered(t *testing.T) {
	root := newRootCmd()

	serve, _, err := root.Find([]string{"serve"})
	if err != nil || serve.Name() != "serve" {
		t.Fatalf("Expected serve command, got %v (%v)", serve, err)
	}
	if serve.Flags().Lookup("port") == nil {
		t.Error("Expected port flag on serve command")
	}
	if serve.Flags().Lookup("data-dir") == nil {
		t.Error("Expected data-dir flag on serve command")
	}
}
