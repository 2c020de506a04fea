package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"metabolic-model-be/internal/pkg/logger"
	"metabolic-model-be/internal/pkg/metrics"
	"metabolic-model-be/pkg/events"
)

// Hub tracks the open simulation sessions per model.
type Hub struct {
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		logger:     log,
	}
}

// Run serves registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ModelID] = append(h.clients[client.ModelID], client)
			h.mu.Unlock()
			metrics.SessionOpened()
			h.logger.Info("HUB", "Session registered", map[string]interface{}{
				"session_id": client.ID.String(),
				"model_id":   client.ModelID,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			clients := h.clients[client.ModelID]
			for i, c := range clients {
				if c == client {
					h.clients[client.ModelID] = append(clients[:i], clients[i+1:]...)
					close(client.Send)
					metrics.SessionClosed()
					break
				}
			}
			if len(h.clients[client.ModelID]) == 0 {
				delete(h.clients, client.ModelID)
			}
			h.mu.Unlock()
			h.logger.Info("HUB", "Session unregistered", map[string]interface{}{
				"session_id": client.ID.String(),
				"model_id":   client.ModelID,
			})
		}
	}
}

// Sessions is the number of open sessions on modelID.
func (h *Hub) Sessions(modelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[modelID])
}

// Notify forwards a model event to every session open on the model it
// names. Sessions with a full send buffer miss it.
func (h *Hub) Notify(ctx context.Context, event events.Event) error {
	modelID, _ := event.Payload()["model_id"].(string)
	if modelID == "" {
		return nil
	}
	data, err := json.Marshal(map[string]interface{}{
		"type": "event",
		"data": map[string]interface{}{
			"event":       event.EventType(),
			"payload":     event.Payload(),
			"occurred_at": event.Timestamp(),
		},
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients[modelID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("HUB", "Send buffer full, dropping event", map[string]interface{}{"session_id": client.ID.String()})
		}
	}
	return nil
}
