package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types pushed to clients
const (
	EventReportUpdated   = "report.updated"
	EventReportSaved     = "report.saved"
	EventReportSubmitted = "report.submitted"
	EventReportPushed    = "report.pushed"
	EventAutosaveFailed  = "autosave.failed"
)

// Event is one change notification
type Event struct {
	Type     string      `json:"type"`
	ReportID string      `json:"reportId,omitempty"`
	Version  int64       `json:"version,omitempty"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	At       time.Time   `json:"at"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients map: client ID -> Client
	clients map[string]*Client

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]*Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It closes every client when ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			zap.L().Debug("📡 Client connected", zap.String("client", client.ID), zap.String("org", client.OrgID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
				zap.L().Debug("📴 Client disconnected", zap.String("client", client.ID))
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Done is closed once Run has returned
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Broadcast sends an event to every client of an organization.
// Slow clients miss events rather than block the sender.
func (h *Hub) Broadcast(orgID string, ev Event) int {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		zap.L().Warn("⚠️ Could not encode event", zap.String("type", ev.Type), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.clients {
		if client.OrgID != orgID || !client.wants(ev.ReportID) {
			continue
		}
		select {
		case client.send <- msg:
			sent++
		default:
			// Buffer full or client dead
		}
	}
	return sent
}

// ClientCount returns the number of connected clients of an organization
func (h *Hub) ClientCount(orgID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if c.OrgID == orgID {
			n++
		}
	}
	return n
}
