package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"campus-map-server/internal/shared/errors"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the viewer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the viewer.
	pongWait = 60 * time.Second

	// Send pings to the viewer with this period. Must be less than pongWait.
	pingPeriod = 15 * time.Second

	// Maximum message size allowed from the viewer.
	maxMessageSize = 4096

	sendBuffer = 64
)

var (
	ErrConnClosed = errors.New(errors.ErrorTypeExternal, "connection closed", nil)
	ErrSlowViewer = errors.New(errors.ErrorTypeExternal, "viewer is not reading messages", nil)
)

// Sender delivers outbound messages to the viewer.
type Sender interface {
	Send(msgType, id string, payload any) error
}

type MessageRecorder interface {
	ObserveMessage(direction, msgType string)
}

// Conn owns one websocket. Writes go through a buffered queue drained by
// WritePump; a viewer that lets the queue fill up is disconnected.
type Conn struct {
	ws       *websocket.Conn
	send     chan []byte
	closed   chan struct{}
	once     sync.Once
	recorder MessageRecorder
	logger   *slog.Logger
}

func NewConn(ws *websocket.Conn, recorder MessageRecorder, logger *slog.Logger) *Conn {
	return &Conn{
		ws:       ws,
		send:     make(chan []byte, sendBuffer),
		closed:   make(chan struct{}),
		recorder: recorder,
		logger:   logger,
	}
}

func (c *Conn) Send(msgType, id string, payload any) error {
	data, err := encode(msgType, id, payload)
	if err != nil {
		return errors.WrapInternal("failed to encode message", err)
	}

	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- data:
		if c.recorder != nil {
			c.recorder.ObserveMessage("out", msgType)
		}
		return nil
	default:
		c.logger.Warn("Send queue full, dropping viewer", "type", msgType)
		c.Close()
		return ErrSlowViewer
	}
}

func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.closed)
		c.ws.Close()
	})
}

// Closed is closed once the connection is shut down.
func (c *Conn) Closed() <-chan struct{} { return c.closed }

// ReadPump hands every inbound frame to handle until the connection fails or
// ctx ends.
func (c *Conn) ReadPump(ctx context.Context, handle func([]byte)) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Websocket read failed", "error", err)
			}
			return
		}
		handle(data)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Conn) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-c.closed:
			return
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("Websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
