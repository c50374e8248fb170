package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"roomchat/internal/chat"
	"roomchat/internal/models"
	"roomchat/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 16 * 1024
	sendBuffer     = 256
)

var (
	ErrClosed         = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Handler is the coordinator as seen by a client connection.
type Handler interface {
	HandleEvent(ctx context.Context, connID string, cmd models.Command) error
	Disconnect(connID string)
}

// Client adapts one gorilla connection to chat.Conn. Outbound events are
// queued on a buffered channel drained by WritePump; a full buffer fails the
// send instead of blocking the caller.
type Client struct {
	id      string
	conn    *websocket.Conn
	handler Handler

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

var _ chat.Conn = (*Client)(nil)

func NewClient(id string, conn *websocket.Conn, handler Handler) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		handler: handler,
		send:    make(chan []byte, sendBuffer),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Send(ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the write pump after it flushes what is already queued.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump decodes commands until the connection fails, then disconnects
// the client from the coordinator.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.handler.Disconnect(c.id)
		c.conn.Close()
	}()

	// Set read deadline and pong handler for connection health
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			return
		}

		cmd, requestID, err := models.ParseCommand(message)
		if err == nil {
			err = c.handler.HandleEvent(ctx, c.id, cmd)
		}
		if err != nil {
			c.reject(requestID, err)
		}
	}
}

func (c *Client) reject(requestID string, err error) {
	code := chat.ErrorCode(err)
	if code == "internal" {
		logger.Error("Command from %s failed: %v", c.id, err)
	}

	ev := models.NewEvent(models.ErrorEvent{Code: code, Message: err.Error(), RequestID: requestID})
	if sendErr := c.Send(ev); sendErr != nil {
		logger.Debug("Dropping error reply to %s: %v", c.id, sendErr)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
