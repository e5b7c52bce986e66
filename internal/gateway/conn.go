package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only listen; anything larger than a control frame is abuse.
	maxMessageSize = 512

	// Outbound queue per connection before a send counts as failed.
	sendQueueSize = 32
)

var errSendQueueFull = errors.New("send queue full")

// connection is one live, authenticated websocket session. It is owned
// exclusively by the gateway process that accepted it and never migrates.
type connection struct {
	id     string
	userID int64

	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(id string, userID int64, ws *websocket.Conn) *connection {
	return &connection{
		id:     id,
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// enqueue hands a payload to the write pump without blocking the broadcaster.
func (c *connection) enqueue(data []byte) error {
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	default:
		return errSendQueueFull
	}
}

// close terminates the transport. Safe to call more than once.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings. One writer per connection; gorilla allows at most one
// concurrent writer.
func (c *connection) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("write failed",
					zap.String("connection_id", c.id),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
