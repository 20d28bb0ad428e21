// Package sync drains the durable entry queue to the remote journal store.
package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wayfound/trailbook/internal/errors"
	"github.com/wayfound/trailbook/internal/logging"
	"github.com/wayfound/trailbook/internal/models"
	"github.com/wayfound/trailbook/internal/remote"
	"github.com/wayfound/trailbook/internal/store"
)

// Reachability reports whether the remote endpoint is believed reachable.
type Reachability interface {
	IsReachable() bool
}

// Queue is the durable backlog the orchestrator drains.
type Queue interface {
	ListDrainable() ([]*models.PendingEntry, error)
	ApplyPatch(id models.UUID, patch store.Patch) error
	Remove(id models.UUID) error
}

// SyncResult summarizes one drain cycle.
type SyncResult struct {
	Success     bool         `json:"success"`
	SyncedCount int          `json:"synced_count"`
	FailedCount int          `json:"failed_count"`
	Errors      []EntryError `json:"errors,omitempty"`
	StartTime   time.Time    `json:"start_time"`
	EndTime     time.Time    `json:"end_time"`
	Duration    string       `json:"duration"`
}

// EntryError records why one entry failed to deliver during a drain.
type EntryError struct {
	EntryID models.UUID `json:"entry_id"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

// Orchestrator drains the queue oldest-first, one entry at a time.
//
// Delivery is at-least-once: an entry is removed from the queue only after
// the remote store confirms the create, and a crash between confirmation and
// removal results in a duplicate, never a loss. Each entry succeeds or fails
// independently; one failure never stops the drain.
type Orchestrator struct {
	queue        Queue
	clientFn     func() remote.Client
	reachability Reachability

	// group collapses concurrent drain requests into one running cycle
	// whose result is shared with every waiting caller.
	group singleflight.Group
}

// NewOrchestrator creates an Orchestrator delivering through a fixed client.
func NewOrchestrator(queue Queue, client remote.Client, reachability Reachability) *Orchestrator {
	return NewOrchestratorWithProvider(queue, func() remote.Client { return client }, reachability)
}

// NewOrchestratorWithProvider creates an Orchestrator that resolves its
// client at the start of every cycle. A remote endpoint configured or
// changed at runtime takes effect on the next drain, no restart needed.
func NewOrchestratorWithProvider(queue Queue, provider func() remote.Client, reachability Reachability) *Orchestrator {
	return &Orchestrator{
		queue:        queue,
		clientFn:     provider,
		reachability: reachability,
	}
}

// SyncAll drains every pending and errored entry to the remote store.
//
// A drain cannot fail as a whole: per-entry failures are recorded on the
// entry and in the result, and the caller always gets a SyncResult. Callers
// arriving while a drain is running share that drain's result instead of
// starting a second cycle.
func (o *Orchestrator) SyncAll(ctx context.Context) *SyncResult {
	v, _, shared := o.group.Do("drain", func() (interface{}, error) {
		return o.drain(ctx), nil
	})
	result := v.(*SyncResult)
	if shared {
		logging.Debug("Joined in-flight sync cycle", nil)
	}
	return result
}

// drain runs one full cycle. Only one drain runs at a time.
func (o *Orchestrator) drain(ctx context.Context) *SyncResult {
	result := &SyncResult{StartTime: time.Now()}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime).String()
	}()

	if !o.reachability.IsReachable() {
		logging.Debug("Skipping sync cycle while offline", nil)
		return result
	}

	entries, err := o.queue.ListDrainable()
	if err != nil {
		logging.Error("Failed to read drainable entries", err)
		return result
	}
	if len(entries) == 0 {
		result.Success = true
		return result
	}

	client := o.clientFn()

	logging.Info("Starting sync cycle",
		map[string]interface{}{"backlog": len(entries)})

	for _, entry := range entries {
		if ctx.Err() != nil {
			logging.Warn("Sync cycle cancelled",
				map[string]interface{}{"remaining": len(entries) - result.SyncedCount - result.FailedCount})
			return result
		}

		delivered, err := o.deliver(ctx, client, entry)
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, EntryError{
				EntryID: entry.ID,
				Title:   entry.Payload.Title,
				Message: err.Error(),
			})
			continue
		}
		if delivered {
			result.SyncedCount++
		}
	}

	result.Success = result.FailedCount == 0
	logging.Info("Sync cycle finished",
		map[string]interface{}{
			"synced":   result.SyncedCount,
			"failed":   result.FailedCount,
			"duration": result.Duration,
		})
	return result
}

// deliver pushes one entry and its media, then removes it from the queue.
// Returns delivered=false with a nil error when the entry vanished before
// delivery: a user deletion is already final, not a failure and not a sync.
func (o *Orchestrator) deliver(ctx context.Context, client remote.Client, entry *models.PendingEntry) (bool, error) {
	syncing := models.StatusSyncing
	if err := o.queue.ApplyPatch(entry.ID, store.Patch{Status: &syncing}); err != nil {
		if errors.Is(err, errors.ErrEntryNotFound) {
			return false, nil
		}
		return false, err
	}

	created, err := client.CreateEntry(ctx, &entry.Payload)
	if err != nil {
		o.markFailed(entry, err)
		return false, err
	}

	// Media failures are deliberately non-fatal: the entry text is already
	// durable remotely, and deleting the local copy is what prevents a
	// duplicate entry on the next cycle.
	for _, media := range entry.MediaInOrder() {
		m := media
		if err := client.UploadMedia(ctx, created.ID, &m); err != nil {
			logging.Warn("Media upload failed; entry kept as delivered",
				map[string]interface{}{
					"entry_id":  entry.ID.String(),
					"media_id":  m.ID.String(),
					"remote_id": created.ID,
					"error":     err.Error(),
				})
		}
	}

	if err := o.queue.Remove(entry.ID); err != nil && !errors.Is(err, errors.ErrEntryNotFound) {
		logging.Error("Failed to remove delivered entry; it will re-deliver", err,
			map[string]interface{}{"entry_id": entry.ID.String()})
		// Put the row back in the drainable pool; a row left in "syncing"
		// would be invisible to every later cycle until a restart.
		o.resetToPending(entry.ID)
		return false, err
	}

	logging.Debug("Entry synced",
		map[string]interface{}{"entry_id": entry.ID.String(), "remote_id": created.ID})
	return true, nil
}

// markFailed records the delivery error on the entry and returns it to the
// drainable pool.
func (o *Orchestrator) markFailed(entry *models.PendingEntry, cause error) {
	failed := models.StatusError
	message := cause.Error()
	retries := entry.RetryCount + 1

	err := o.queue.ApplyPatch(entry.ID, store.Patch{
		Status:       &failed,
		ErrorMessage: &message,
		RetryCount:   &retries,
	})
	if err != nil && !errors.Is(err, errors.ErrEntryNotFound) {
		logging.Error("Failed to record delivery error", err,
			map[string]interface{}{"entry_id": entry.ID.String()})
		// Even without the error bookkeeping the row must not rest in
		// "syncing", or later drains would skip it.
		o.resetToPending(entry.ID)
	}

	logging.Warn("Entry delivery failed",
		map[string]interface{}{
			"entry_id":    entry.ID.String(),
			"retry_count": retries,
			"error":       fmt.Sprintf("%v", cause),
		})
}

// resetToPending makes a row drainable again after a failed status update.
func (o *Orchestrator) resetToPending(id models.UUID) {
	pending := models.StatusPending
	err := o.queue.ApplyPatch(id, store.Patch{Status: &pending})
	if err != nil && !errors.Is(err, errors.ErrEntryNotFound) {
		logging.Error("Failed to reset entry to pending; recovery happens on next restart", err,
			map[string]interface{}{"entry_id": id.String()})
	}
}
