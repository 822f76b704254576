package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
)

const (
	clientModule   = "WorkspaceClient"
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 256
)

// Conn is the part of a websocket connection the pumps use.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a middleman between one websocket connection and its Session.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn Conn

	// uuid.Nil for anonymous connections
	UserID uuid.UUID

	Session *Session

	// Buffered channel of outbound messages.
	Send chan []byte

	done      chan struct{}
	closeOnce sync.Once
	logger    logger.ILogger
}

func NewClient(hub *Hub, conn Conn, userID uuid.UUID, session *Session, log logger.ILogger) *Client {
	return &Client{
		Hub:     hub,
		Conn:    conn,
		UserID:  userID,
		Session: session,
		Send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		logger:  log,
	}
}

// enqueue never blocks. A client that cannot keep up loses frames.
func (c *Client) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.Send <- data:
	case <-c.done:
	default:
		c.logger.Warn(clientModule, "Send buffer full, dropping frame", map[string]interface{}{
			"session_id": c.Session.ID,
		})
	}
}

// push encodes and queues a frame. It is the Session's output while attached.
func (c *Client) push(f Frame) {
	data, err := encodeFrame(f)
	if err != nil {
		c.logger.Error(clientModule, "Failed to encode frame", map[string]interface{}{"type": f.Type, "error": err.Error()})
		return
	}
	c.enqueue(data)
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump decodes commands and hands them to the Session in arrival order.
func (c *Client) readPump() {
	defer func() {
		c.close()
		if c.Hub != nil {
			c.Hub.Unregister(c)
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn(clientModule, "Unexpected close", map[string]interface{}{
					"session_id": c.Session.ID,
					"error":      err.Error(),
				})
			}
			return
		}
		// any traffic proves the peer is alive
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.push(errorFrame("Invalid message: expected a JSON command"))
			continue
		}
		c.Session.Handle(cmd)
	}
}

// writePump writes queued frames, one websocket message each, and pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
