package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DeviceEvent reports a change in the visible device population
type DeviceEvent struct {
	DeviceCount int       `json:"deviceCount"`
	Previous    int       `json:"previous"`
	Timestamp   time.Time `json:"timestamp"`
}

// EventBroadcaster manages SSE connections for device events
type EventBroadcaster struct {
	mu      sync.Mutex
	clients map[chan DeviceEvent]bool
	last    *DeviceEvent
	closed  bool
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients: make(map[chan DeviceEvent]bool),
	}
}

// Subscribe adds a client to receive device events
func (eb *EventBroadcaster) Subscribe() chan DeviceEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan DeviceEvent, 10) // Buffered to prevent blocking
	if eb.closed {
		close(ch)
		return ch
	}
	eb.clients[ch] = true

	// Send last event if available (for reconnecting clients)
	if eb.last != nil {
		select {
		case ch <- *eb.last:
		default:
		}
	}

	slog.Debug("SSE client subscribed", "total_clients", len(eb.clients))
	return ch
}

// Unsubscribe removes a client from receiving events
func (eb *EventBroadcaster) Unsubscribe(ch chan DeviceEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, ok := eb.clients[ch]; ok {
		delete(eb.clients, ch)
		close(ch)
	}

	slog.Debug("SSE client unsubscribed", "total_clients", len(eb.clients))
}

// Broadcast sends an event to all subscribed clients
func (eb *EventBroadcaster) Broadcast(event DeviceEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.last = &event

	if len(eb.clients) == 0 {
		return
	}

	slog.Debug("Broadcasting event", "clients", len(eb.clients), "device_count", event.DeviceCount)

	for ch := range eb.clients {
		select {
		case ch <- event:
		default:
			// Channel full, skip this client (prevents blocking)
			slog.Warn("SSE channel full, skipping event")
		}
	}
}

// Last returns the most recently broadcast event, if any.
func (eb *EventBroadcaster) Last() *DeviceEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return eb.last
}

// Close drops all clients and stops accepting events
func (eb *EventBroadcaster) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for ch := range eb.clients {
		close(ch)
	}
	eb.clients = make(map[chan DeviceEvent]bool)
	eb.last = nil
	eb.closed = true
}

// handleEvents handles GET /api/v1/events as an SSE stream
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	eventChan := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(eventChan)

	// Seed new clients with the current population when no change event
	// has fired yet
	if s.broadcaster.Last() == nil {
		if count, known := s.watcher.Last(); known {
			initial := DeviceEvent{
				DeviceCount: count,
				Previous:    count,
				Timestamp:   time.Now(),
			}
			if err := writeSSEEvent(w, initial); err != nil {
				slog.Error("Failed to write initial SSE event", "error", err)
				return
			}
		}
	}
	flusher.Flush()

	// Set up ping ticker to keep connection alive
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("SSE client disconnected")
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("Failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()

		case <-pingTicker.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes an event in SSE format
func writeSSEEvent(w http.ResponseWriter, event DeviceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// SSE format: "data: {json}\n\n"
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
