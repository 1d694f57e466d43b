package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cwbudde/vkprobe/internal/vk"
)

// Watcher polls the driver for the visible device count and broadcasts an
// event whenever it changes. Each poll opens a short-lived instance.
type Watcher struct {
	driver      vk.Driver
	broadcaster *EventBroadcaster
	interval    time.Duration

	mu    sync.Mutex
	last  int
	known bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewWatcher creates a watcher polling driver every interval.
func NewWatcher(driver vk.Driver, broadcaster *EventBroadcaster, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		driver:      driver,
		broadcaster: broadcaster,
		interval:    interval,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the poll loop. The first poll only establishes the
// baseline; events fire on later changes.
func (w *Watcher) Start() {
	go w.run()
}

// Stop halts the poll loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

// Last returns the most recent device count, if a poll has completed.
func (w *Watcher) Last() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.known
}

func (w *Watcher) run() {
	defer close(w.done)

	w.poll()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	instance, res := w.driver.CreateInstance()
	if res != vk.Success {
		slog.Warn("Device poll failed", "op", "vkCreateInstance", "result", res.String())
		return
	}
	count, res := instance.PhysicalDeviceCount()
	instance.Destroy()
	if res != vk.Success {
		slog.Warn("Device poll failed", "op", "vkEnumeratePhysicalDevices (count)", "result", res.String())
		return
	}

	w.mu.Lock()
	previous, known := w.last, w.known
	w.last, w.known = int(count), true
	w.mu.Unlock()

	if !known {
		slog.Debug("Device watch baseline", "devices", count)
		return
	}
	if int(count) == previous {
		return
	}

	slog.Info("Device count changed", "previous", previous, "current", count)
	w.broadcaster.Broadcast(DeviceEvent{
		DeviceCount: int(count),
		Previous:    previous,
		Timestamp:   time.Now(),
	})
}
