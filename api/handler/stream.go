package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/operation"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is protected by key auth, not by origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamOperation returns a handler for GET /api/v1/operation/stream.
//
// It upgrades to a websocket, sends the current snapshot, then one
// OperationResponse per applied transition until the client goes away.
func StreamOperation(store *operation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		updates, unsubscribe := store.Subscribe(16)
		defer unsubscribe()

		closed := make(chan struct{})
		go readPump(conn, closed)

		if err := writeSnapshot(conn, store.Snapshot()); err != nil {
			return
		}

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-closed:
				return
			case op, ok := <-updates:
				if !ok {
					return
				}
				if err := writeSnapshot(conn, op); err != nil {
					slog.Debug("websocket write failed", "error", err)
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, op models.Operation) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(models.OperationResponse{
		Success:   true,
		Operation: op,
		IsLoading: op.IsLoading(),
	})
}

// readPump drains client frames so pongs and close frames are processed,
// and closes done when the connection ends.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed unexpectedly", "error", err)
			}
			return
		}
	}
}
