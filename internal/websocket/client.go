package websocket

import (
	"time"

	"metabolic-model-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 16
)

// FrameHandler answers one text frame. A nil reply sends nothing; done ends
// the session.
type FrameHandler func(frame []byte) (reply []byte, done bool)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	ID      uuid.UUID
	ModelID string

	// Buffered channel of outbound messages.
	Send chan []byte

	// closed when writePump exits
	done chan struct{}

	logger logger.ILogger
}

// readPump feeds frames to handle and queues the replies. It returns when
// the peer goes away or handle ends the session.
func (c *Client) readPump(handle FrameHandler) {
	defer func() {
		c.Hub.unregister <- c
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("WS", "Unexpected close", map[string]interface{}{"session_id": c.ID.String(), "error": err.Error()})
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		reply, done := handle(frame)
		if reply != nil {
			select {
			case c.Send <- reply:
			case <-c.done:
				return
			}
		}
		if done {
			return
		}
	}
}

// writePump drains Send to the connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		close(c.done)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("WS", "Write failed", map[string]interface{}{"session_id": c.ID.String(), "error": err.Error()})
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
