package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

// outboxSize bounds how many undelivered feed messages a viewer may queue
// before the hub starts dropping. A viewer that far behind refetches the
// feed on its next interaction anyway.
const outboxSize = 32

// keepaliveInterval paces pings so half-dead connections release their hub
// slot instead of lingering.
const keepaliveInterval = 45 * time.Second

// Client is one connected feed viewer.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	outbox chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
	}
}

// Run serves the connection until it drops, then unregisters. Viewers never
// send application data upstream; the read loop exists only to observe the
// close handshake.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.deliver(ctx)

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// deliver writes queued feed messages and keepalive pings until the outbox
// closes or the connection fails.
func (c *Client) deliver(ctx context.Context) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.outbox:
			if !ok {
				// Hub unregistered us.
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
