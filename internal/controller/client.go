package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/service/auth"
)

// client is a live websocket connection. Outbound messages go through a
// buffered queue drained by writePump; inbound ones are handled one at a
// time by readPump.
type client struct {
	id        string
	identity  auth.Identity
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	cfg       *Config
	logger    *slog.Logger
}

func newClient(conn *websocket.Conn, identity auth.Identity, cfg *Config, logger *slog.Logger) *client {
	return &client{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, cfg.SendBufferSize),
		done:     make(chan struct{}),
		cfg:      cfg,
		logger:   logger,
	}
}

func (c *client) Id() string {
	return c.id
}

// Enqueue queues data for writing without blocking. It reports false
// when the queue is full.
func (c *client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the underlying connection and
// in turn ends the read pump.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	return nil
}

func (c *client) readPump(ctx context.Context, handle func(context.Context, *client, []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WarnContext(ctx, "websocket read failed", "error", err)
			}
			return
		}

		handle(ctx, c, data)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.flush()
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait),
			)
			return
		}
	}
}

// flush writes whatever is still queued, giving up on the first error.
func (c *client) flush() {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
