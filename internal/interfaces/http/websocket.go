package http

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"telereply/internal/entities"
)

const wsWriteTimeout = 5 * time.Second

// wsObserver adapts one websocket connection to the broadcaster's Observer
// surface. A failed write makes the broadcaster drop the observer.
type wsObserver struct {
	conn *websocket.Conn
}

func (o *wsObserver) SendEvent(event entities.ChatEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return o.conn.Write(ctx, websocket.MessageText, data)
}

// HandleWebSocket upgrades the connection and registers it for chat events.
// The read loop only drains control frames; clients never send payloads.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}

	observer := &wsObserver{conn: conn}
	h.broadcaster.Connect(observer)
	log.Printf("[WS] observer connected, %d active", h.broadcaster.Count())

	defer func() {
		h.broadcaster.Disconnect(observer)
		conn.Close(websocket.StatusNormalClosure, "")
		log.Printf("[WS] observer disconnected, %d active", h.broadcaster.Count())
	}()

	ctx := c.Request.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}
