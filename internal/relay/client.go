package relay

import (
	"chatrelay/pkg/logger"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one WebSocket connection. Its read pump validates inbound frames
// and hands them to the hub; its write pump delivers broadcasts and pings.
type Client struct {
	id   string
	ctx  context.Context //nolint: containedctx
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(ctx context.Context, hub *Hub, conn *websocket.Conn, addr string) *Client {
	id := uuid.New().String()
	conn.SetReadLimit(hub.opts.MaxMessageSize)

	return &Client{
		id:   id,
		ctx:  logger.WithFields(ctx, zap.String("client_id", id), zap.String("client_ip", addr)),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, hub.opts.SendBuffer),
	}
}

// ID returns the identifier assigned to the connection.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)

			return
		}

		// binary frames carry no text and validate as a non-string payload
		var raw any = data
		if msgType == websocket.TextMessage {
			raw = string(data)
		}
		if !c.hub.publish(c.hub.validate(c.ctx, c, raw, len(data))) {
			return
		}
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		logger.Warn(c.ctx, "message exceeded maximum size", zap.Int64("limit", c.hub.opts.MaxMessageSize))
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		logger.Warn(c.ctx, "unexpected websocket close", zap.Error(err))
	default:
		logger.Debug(c.ctx, "websocket read ended", zap.Error(err))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if !ok {
				// the hub closed the queue
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

				return
			}
			if err := c.write(message); err != nil {
				logger.Debug(c.ctx, "could not write message", zap.Error(err))

				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug(c.ctx, "could not write ping", zap.Error(err))

				return
			}
		}
	}
}

// write sends message and every payload already queued behind it in one
// text frame, one payload per line.
func (c *Client) write(message []byte) error {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err := w.Write(message); err != nil {
		return err
	}

	n := len(c.send)
	for range n {
		queued, ok := <-c.send
		if !ok {
			break
		}
		if _, err := w.Write(newline); err != nil {
			return err
		}
		if _, err := w.Write(queued); err != nil {
			return err
		}
	}

	return w.Close()
}

var newline = []byte{'\n'} //nolint: gochecknoglobals
