package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mi-ganesh/Document-Editor/internal/models"
)

// Client is one live websocket connection.
type Client struct {
	ID           string
	Conn         *websocket.Conn
	WriteTimeout time.Duration

	mu   sync.Mutex
	hook func(models.WSFrame)
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{ID: uuid.NewString(), Conn: conn, WriteTimeout: 10 * time.Second}
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send writes a frame to the connection. Delivery is best effort; write errors
// surface on the read side and end the connection there.
func (c *Client) Send(frame models.WSFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		c.hook(frame)
		return
	}
	if c.Conn == nil {
		return
	}
	_ = c.Conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	_ = c.Conn.WriteJSON(frame)
}

// Ping sends a websocket ping control frame.
func (c *Client) Ping() error {
	if c.Conn == nil {
		return nil
	}
	return c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.WriteTimeout))
}
