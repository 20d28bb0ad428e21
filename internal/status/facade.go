// Package status aggregates connectivity, queue backlog and sync progress
// into one observable view for the presentation layer.
package status

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/wayfound/trailbook/internal/connectivity"
	"github.com/wayfound/trailbook/internal/logging"
	"github.com/wayfound/trailbook/internal/store"
	"github.com/wayfound/trailbook/internal/sync"
)

// Snapshot is a point-in-time view of the engine's state.
type Snapshot struct {
	IsOnline       bool             `json:"is_online"`
	PendingCount   int              `json:"pending_count"`
	IsSyncing      bool             `json:"is_syncing"`
	LastSyncResult *sync.SyncResult `json:"last_sync_result,omitempty"`
}

// Subscription identifies a registered snapshot callback.
type Subscription struct {
	id int
}

// Facade is the single surface the shell reads engine state through.
//
// It owns no delivery logic: draining is delegated to the orchestrator
// (whose single-flight guard it shares), connectivity to the monitor, and
// counting to the queue. The facade's job is keeping those views coherent
// and pushing changes to subscribers.
type Facade struct {
	queue        *store.QueueStore
	orchestrator *sync.Orchestrator
	monitor      *connectivity.Monitor

	mu           stdsync.Mutex
	pendingCount int
	activeDrains int
	lastResult   *sync.SyncResult
	nextID       int
	subs         map[int]func(Snapshot)

	monitorSub *connectivity.Subscription

	loopMu  stdsync.Mutex
	running bool
	stopCh  chan struct{}
	wg      stdsync.WaitGroup
}

// NewFacade creates a Facade and wires it to the connectivity monitor.
// Coming back online triggers one automatic drain of the backlog.
func NewFacade(queue *store.QueueStore, orchestrator *sync.Orchestrator, monitor *connectivity.Monitor) *Facade {
	f := &Facade{
		queue:        queue,
		orchestrator: orchestrator,
		monitor:      monitor,
		subs:         make(map[int]func(Snapshot)),
	}

	if count, err := queue.CountBacklog(); err == nil {
		f.pendingCount = count
	}

	f.monitorSub = monitor.Subscribe(func(online bool) {
		f.notify()
		if online {
			logging.Info("Connectivity restored, draining backlog", nil)
			go f.SyncPending(context.Background())
		}
	})

	return f
}

// Close detaches the facade from the monitor and stops the retry loop.
func (f *Facade) Close() {
	f.StopRetryLoop()
	f.monitor.Unsubscribe(f.monitorSub)
}

// Snapshot returns the current engine state.
func (f *Facade) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		IsOnline:       f.monitor.IsReachable(),
		PendingCount:   f.pendingCount,
		IsSyncing:      f.activeDrains > 0,
		LastSyncResult: f.lastResult,
	}
}

// SyncPending drains the backlog now and returns the cycle's result. The
// pending count is re-derived afterwards regardless of outcome, since a
// partial drain still shrinks the queue.
func (f *Facade) SyncPending(ctx context.Context) *sync.SyncResult {
	f.mu.Lock()
	f.activeDrains++
	f.mu.Unlock()
	f.notify()

	result := f.orchestrator.SyncAll(ctx)

	f.mu.Lock()
	f.activeDrains--
	f.lastResult = result
	f.mu.Unlock()

	if _, err := f.RefreshPendingCount(); err != nil {
		logging.Error("Failed to refresh pending count after drain", err)
	}
	f.notify()
	return result
}

// RefreshPendingCount re-derives the backlog count from the store. Called
// by the capture path after every put or delete so subscribers stay current.
func (f *Facade) RefreshPendingCount() (int, error) {
	count, err := f.queue.CountBacklog()
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	changed := f.pendingCount != count
	f.pendingCount = count
	f.mu.Unlock()

	if changed {
		f.notify()
	}
	return count, nil
}

// Subscribe registers a callback fired with a fresh snapshot whenever the
// engine's state changes.
func (f *Facade) Subscribe(fn func(Snapshot)) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.subs[f.nextID] = fn
	return &Subscription{id: f.nextID}
}

// Unsubscribe removes a previously registered callback.
func (f *Facade) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, sub.id)
}

// notify pushes the current snapshot to every subscriber.
func (f *Facade) notify() {
	snapshot := f.Snapshot()

	f.mu.Lock()
	callbacks := make([]func(Snapshot), 0, len(f.subs))
	for _, fn := range f.subs {
		callbacks = append(callbacks, fn)
	}
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(snapshot)
	}
}

// StartRetryLoop begins re-draining the errored backlog on an interval while
// online. Calling it on a running facade is a no-op.
func (f *Facade) StartRetryLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	f.loopMu.Lock()
	if f.running {
		f.loopMu.Unlock()
		return
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.loopMu.Unlock()

	f.wg.Add(1)
	go f.retryLoop(ctx, interval)

	logging.Info("Sync retry loop started",
		map[string]interface{}{"interval_seconds": interval.Seconds()})
}

// StopRetryLoop halts the retry loop and waits for it to exit.
func (f *Facade) StopRetryLoop() {
	f.loopMu.Lock()
	if !f.running {
		f.loopMu.Unlock()
		return
	}
	f.running = false
	close(f.stopCh)
	f.loopMu.Unlock()

	f.wg.Wait()
}

// retryLoop re-drains on each tick when there is a backlog and the remote
// is reachable. Skipped ticks are silent; the next one tries again.
func (f *Facade) retryLoop(ctx context.Context, interval time.Duration) {
	defer f.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case <-ticker.C:
			if !f.monitor.IsReachable() {
				continue
			}
			count, err := f.queue.CountBacklog()
			if err != nil || count == 0 {
				continue
			}
			f.SyncPending(ctx)
		}
	}
}
