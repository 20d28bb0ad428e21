// Package status provides unit tests for the engine state facade.
package status

import (
	"context"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/wayfound/trailbook/internal/connectivity"
	"github.com/wayfound/trailbook/internal/errors"
	"github.com/wayfound/trailbook/internal/models"
	"github.com/wayfound/trailbook/internal/remote"
	"github.com/wayfound/trailbook/internal/store"
	"github.com/wayfound/trailbook/internal/sync"
)

// fakeClient is a togglable remote that accepts or rejects every delivery.
type fakeClient struct {
	mu      stdsync.Mutex
	failing bool
	created int
}

func (c *fakeClient) setFailing(failing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing = failing
}

func (c *fakeClient) CreateEntry(ctx context.Context, payload *models.EntryPayload) (*remote.RemoteEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return nil, errors.New(errors.ErrDeliveryFailed, "remote store unavailable")
	}
	c.created++
	return &remote.RemoteEntry{ID: fmt.Sprintf("remote-%d", c.created)}, nil
}

func (c *fakeClient) UploadMedia(ctx context.Context, remoteEntryID string, media *models.PendingMedia) error {
	return nil
}

// setupFacade wires a real queue and orchestrator behind the facade.
func setupFacade(t *testing.T, initialOnline bool) (*store.QueueStore, *fakeClient, *connectivity.Monitor, *Facade) {
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

	client := &fakeClient{}
	monitor := connectivity.NewMonitor(initialOnline)
	orchestrator := sync.NewOrchestrator(queue, client, monitor)
	facade := NewFacade(queue, orchestrator, monitor)
	t.Cleanup(facade.Close)

	return queue, client, monitor, facade
}

// queueEntry puts a minimal entry and refreshes the facade count, the way
// the capture handler does.
func queueEntry(t *testing.T, queue *store.QueueStore, facade *Facade, title string) {
	t.Helper()

	_, err := queue.Put(&models.PendingEntry{
		Payload: models.EntryPayload{Title: title, Narrative: "n", EntryDate: 1755900000},
	})
	if err != nil {
		t.Fatalf("Failed to queue entry: %v", err)
	}
	if _, err := facade.RefreshPendingCount(); err != nil {
		t.Fatalf("Failed to refresh count: %v", err)
	}
}

// waitFor polls until the condition holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// TestSnapshotReflectsState tests the initial and post-capture snapshot.
func TestSnapshotReflectsState(t *testing.T) {
	queue, _, _, facade := setupFacade(t, true)

	snap := facade.Snapshot()
	if !snap.IsOnline || snap.PendingCount != 0 || snap.IsSyncing {
		t.Errorf("Unexpected initial snapshot: %+v", snap)
	}

	queueEntry(t, queue, facade, "day one")
	queueEntry(t, queue, facade, "day two")

	snap = facade.Snapshot()
	if snap.PendingCount != 2 {
		t.Errorf("Expected pending count 2, got %d", snap.PendingCount)
	}
}

// TestSyncPendingUpdatesSnapshot tests that a manual drain clears the
// backlog and records the result.
func TestSyncPendingUpdatesSnapshot(t *testing.T) {
	queue, _, _, facade := setupFacade(t, true)
	queueEntry(t, queue, facade, "to deliver")

	result := facade.SyncPending(context.Background())
	if !result.Success || result.SyncedCount != 1 {
		t.Fatalf("Expected clean drain, got %+v", result)
	}

	snap := facade.Snapshot()
	if snap.PendingCount != 0 {
		t.Errorf("Expected empty backlog, got %d", snap.PendingCount)
	}
	if snap.IsSyncing {
		t.Error("Expected IsSyncing=false after drain")
	}
	if snap.LastSyncResult == nil || snap.LastSyncResult.SyncedCount != 1 {
		t.Errorf("Expected last result recorded, got %+v", snap.LastSyncResult)
	}
}

// TestOfflineDrainKeepsBacklog tests that draining while offline leaves the
// queue intact and reports a failed cycle.
func TestOfflineDrainKeepsBacklog(t *testing.T) {
	queue, _, _, facade := setupFacade(t, false)
	queueEntry(t, queue, facade, "stuck offline")

	result := facade.SyncPending(context.Background())
	if result.Success || result.SyncedCount != 0 {
		t.Errorf("Expected failed no-op drain offline, got %+v", result)
	}

	snap := facade.Snapshot()
	if snap.PendingCount != 1 {
		t.Errorf("Expected backlog preserved, got %d", snap.PendingCount)
	}
}

// TestAutoDrainOnReconnect tests that the offline→online edge triggers one
// automatic drain of the backlog.
func TestAutoDrainOnReconnect(t *testing.T) {
	queue, _, monitor, facade := setupFacade(t, false)
	queueEntry(t, queue, facade, "captured offline")

	monitor.SetOnline(true)

	waitFor(t, "automatic drain after reconnect", func() bool {
		return facade.Snapshot().PendingCount == 0
	})
}

// TestSubscriberSeesCountChanges tests reactive snapshot delivery.
func TestSubscriberSeesCountChanges(t *testing.T) {
	queue, _, _, facade := setupFacade(t, true)

	var mu stdsync.Mutex
	var counts []int
	sub := facade.Subscribe(func(s Snapshot) {
		mu.Lock()
		counts = append(counts, s.PendingCount)
		mu.Unlock()
	})
	defer facade.Unsubscribe(sub)

	queueEntry(t, queue, facade, "observed")

	mu.Lock()
	defer mu.Unlock()
	if len(counts) == 0 || counts[len(counts)-1] != 1 {
		t.Errorf("Expected subscriber to see count 1, got %v", counts)
	}
}

// TestUnsubscribeStopsNotifications tests subscriber removal.
func TestUnsubscribeStopsNotifications(t *testing.T) {
	queue, _, _, facade := setupFacade(t, true)

	calls := 0
	sub := facade.Subscribe(func(Snapshot) { calls++ })
	facade.Unsubscribe(sub)

	queueEntry(t, queue, facade, "unobserved")

	if calls != 0 {
		t.Errorf("Expected no notifications after unsubscribe, got %d", calls)
	}
}

// TestRetryLoopRedeliversErroredBacklog tests that the background loop picks
// up entries that failed an earlier drain once the remote recovers.
func TestRetryLoopRedeliversErroredBacklog(t *testing.T) {
	queue, client, _, facade := setupFacade(t, true)

	client.setFailing(true)
	queueEntry(t, queue, facade, "flaky")

	result := facade.SyncPending(context.Background())
	if result.FailedCount != 1 {
		t.Fatalf("Expected initial drain to fail, got %+v", result)
	}

	client.setFailing(false)
	facade.StartRetryLoop(context.Background(), 20*time.Millisecond)
	defer facade.StopRetryLoop()

	waitFor(t, "retry loop to drain errored backlog", func() bool {
		return facade.Snapshot().PendingCount == 0
	})
}
