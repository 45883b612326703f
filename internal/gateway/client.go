package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rfglabs/deathroll/internal/model"
	"github.com/rfglabs/deathroll/internal/pubsub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024

	sendBufferSize = 64
)

// clientMessage is the envelope clients send over the socket.
type clientMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id,omitempty"`
}

// Client is one websocket connection belonging to an authenticated user.
type Client struct {
	gateway *Gateway
	conn    *websocket.Conn
	userID  model.UserID
	logger  *slog.Logger

	send chan []byte

	mu     sync.Mutex
	subs   map[string]*pubsub.Subscription
	closed bool
}

func newClient(gw *Gateway, conn *websocket.Conn, userID model.UserID) *Client {
	return &Client{
		gateway: gw,
		conn:    conn,
		userID:  userID,
		logger: gw.logger.With(
			slog.String("user_id", string(userID)),
			slog.String("remote_addr", conn.RemoteAddr().String()),
		),
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]*pubsub.Subscription),
	}
}

// subscribe attaches the client to a pubsub topic. Events are forwarded
// into the send buffer; a full buffer drops the event, matching the
// broker's delivery contract.
func (c *Client) subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, ok := c.subs[topic]; ok {
		return
	}

	sub := c.gateway.broker.Subscribe(topic)
	c.subs[topic] = sub

	go func() {
		for event := range sub.C {
			data, err := encodeEvent(event)
			if err != nil {
				c.logger.Error("failed to encode event",
					slog.String("event", string(event.Type)),
					slog.String("error", err.Error()))
				continue
			}
			select {
			case c.send <- data:
			default:
			}
		}
	}()
}

// enqueue pushes a raw frame to the client, dropping it if the buffer
// is full.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// teardown closes all subscriptions exactly once.
func (c *Client) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, sub := range c.subs {
		sub.Close()
	}
	c.subs = nil
}

// readPump consumes client envelopes until the connection drops.
// Runs on the connection's handler goroutine.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.gateway.disconnect(ctx, c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", slog.String("error", err.Error()))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.enqueue(encodeError("invalid message"))
			continue
		}

		c.gateway.handleMessage(ctx, c, msg)
	}
}

// writePump drains the send buffer onto the wire with keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
