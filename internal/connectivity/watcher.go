// Background watcher feeding the Monitor from a platform signal.
package connectivity

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/wayfound/trailbook/internal/logging"
)

// Signal is the platform's boolean network-presence primitive.
type Signal interface {
	Online() bool
}

// InterfaceSignal reports presence of a usable network interface. It does
// not probe the remote endpoint; it only mirrors what the host believes
// about its own connectivity.
type InterfaceSignal struct{}

// Online reports whether any non-loopback interface is up with an address.
func (InterfaceSignal) Online() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		return true
	}
	return false
}

// Watcher periodically samples a Signal and feeds the Monitor. The Monitor's
// own edge detection keeps steady-state samples from reaching subscribers.
type Watcher struct {
	monitor  *Monitor
	signal   Signal
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates a Watcher sampling signal at the given interval.
func NewWatcher(monitor *Monitor, signal Signal, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Watcher{
		monitor:  monitor,
		signal:   signal,
		interval: interval,
	}
}

// Start begins sampling in the background. Calling Start on a running
// watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	// Seed the monitor before the first tick
	w.monitor.SetOnline(w.signal.Online())

	w.wg.Add(1)
	go w.loop(ctx)

	logging.Info("Connectivity watcher started",
		map[string]interface{}{"interval_seconds": w.interval.Seconds()})
}

// Stop halts sampling and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
}

// loop samples the signal until stopped.
func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.monitor.SetOnline(w.signal.Online())
		}
	}
}
