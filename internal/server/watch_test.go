package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/vkprobe/internal/vk"
)

// waitForBaseline blocks until the watcher has completed its first poll.
func waitForBaseline(t *testing.T, w *Watcher) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, known := w.Last(); known {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Watcher never completed a poll")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatcher_BroadcastsOnChange(t *testing.T) {
	driver := &vk.FakeDriver{}
	driver.SetDevices(&vk.FakeDevice{})

	bc := NewEventBroadcaster()
	ch := bc.Subscribe()

	w := NewWatcher(driver, bc, 10*time.Millisecond)
	w.Start()
	defer w.Stop()

	waitForBaseline(t, w)

	// Plug in a second device and wait for the change event
	driver.SetDevices(&vk.FakeDevice{}, &vk.FakeDevice{})

	select {
	case ev := <-ch:
		if ev.DeviceCount != 2 {
			t.Errorf("Expected device count 2, got %d", ev.DeviceCount)
		}
		if ev.Previous != 1 {
			t.Errorf("Expected previous count 1, got %d", ev.Previous)
		}
		if ev.Timestamp.IsZero() {
			t.Error("Timestamp should be set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for device event")
	}
}

func TestWatcher_NoEventWithoutChange(t *testing.T) {
	driver := &vk.FakeDriver{}
	driver.SetDevices(&vk.FakeDevice{})

	bc := NewEventBroadcaster()
	ch := bc.Subscribe()

	w := NewWatcher(driver, bc, 10*time.Millisecond)
	w.Start()
	defer w.Stop()

	waitForBaseline(t, w)

	select {
	case ev := <-ch:
		t.Errorf("Expected no event for a stable population, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_PollFailure(t *testing.T) {
	driver := &vk.FakeDriver{
		Fail: map[string]vk.Result{"CreateInstance": vk.ErrorInitializationFailed},
	}

	bc := NewEventBroadcaster()
	w := NewWatcher(driver, bc, 10*time.Millisecond)
	w.Start()

	time.Sleep(50 * time.Millisecond)
	w.Stop()

	if _, known := w.Last(); known {
		t.Error("Failed polls should not establish a baseline")
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	driver := &vk.FakeDriver{}
	bc := NewEventBroadcaster()

	w := NewWatcher(driver, bc, 10*time.Millisecond)
	w.Start()

	w.Stop()
	w.Stop()
}

func TestBroadcaster_ReplaysLastEvent(t *testing.T) {
	bc := NewEventBroadcaster()

	bc.Broadcast(DeviceEvent{DeviceCount: 2, Previous: 1, Timestamp: time.Now()})

	ch := bc.Subscribe()
	select {
	case ev := <-ch:
		if ev.DeviceCount != 2 {
			t.Errorf("Expected replayed event with count 2, got %d", ev.DeviceCount)
		}
	default:
		t.Fatal("Expected the last event to be replayed to new subscribers")
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	bc := NewEventBroadcaster()

	ch := bc.Subscribe()
	bc.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("Expected closed channel after unsubscribe")
	}
}

func TestBroadcaster_CloseDropsClients(t *testing.T) {
	bc := NewEventBroadcaster()

	ch := bc.Subscribe()
	bc.Close()

	if _, ok := <-ch; ok {
		t.Error("Expected closed channel after broadcaster close")
	}

	// Broadcast after close must not panic or resurrect state
	bc.Broadcast(DeviceEvent{DeviceCount: 1})
	if bc.Last() != nil {
		t.Error("Closed broadcaster should not record events")
	}
}

func TestServer_EventStream(t *testing.T) {
	driver := &vk.FakeDriver{}
	driver.SetDevices(&vk.FakeDevice{})
	s := NewServer(":0", driver, time.Minute)

	srv := httptest.NewServer(http.HandlerFunc(s.handleEvents))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type mismatch: got %s", ct)
	}

	// The subscription is live once headers arrive, so this event must
	// reach the stream.
	s.broadcaster.Broadcast(DeviceEvent{DeviceCount: 3, Previous: 1, Timestamp: time.Now()})

	scanner := bufio.NewScanner(resp.Body)
	var payload string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			payload = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	if payload == "" {
		t.Fatalf("No SSE data line received: %v", scanner.Err())
	}

	var ev DeviceEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		t.Fatalf("Failed to decode event: %v", err)
	}
	if ev.DeviceCount != 3 || ev.Previous != 1 {
		t.Errorf("Event mismatch: got %+v", ev)
	}
}
