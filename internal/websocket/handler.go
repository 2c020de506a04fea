package websocket

import (
	"metabolic-model-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs runs a session on c until the peer leaves or handle ends it.
func ServeWs(hub *Hub, c *websocket.Conn, id uuid.UUID, modelID string, handle FrameHandler, log logger.ILogger) {
	client := &Client{
		Hub:     hub,
		Conn:    c,
		ID:      id,
		ModelID: modelID,
		Send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		logger:  log,
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump(handle)
	// let the last replies and the close frame go out
	<-client.done
}
