package transport

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

var nextClientID int64

// Client wraps one WebSocket connection: a read pump that decodes incoming
// ClientFrames, and a write pump that drains a buffered send channel.
// Authored fresh (server.go references NewClient but the gateway package
// never shipped one in the retrieved pack); the pump-pair shape and the
// ping/pong keepalive follow gorilla/websocket's own documented chat
// example, which is the same pattern vanducng-goclaw's other websocket
// call sites (cmd/agent_chat_client.go) use on the client side.
type Client struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	logger *slog.Logger

	send    chan protocol.ServerFrame
	limiter *RateLimiter

	mu        sync.Mutex
	sessionID string

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn *websocket.Conn, s *Server) *Client {
	return &Client{
		id:      atomic.AddInt64(&nextClientID, 1),
		conn:    conn,
		server:  s,
		logger:  s.logger,
		send:    make(chan protocol.ServerFrame, sendBufferSize),
		limiter: NewRateLimiter(20, 40),
		closed:  make(chan struct{}),
	}
}

// run drives both pumps until the connection closes. It blocks.
func (c *Client) run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()

	c.readPump(ctx)
	<-done
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if !c.limiter.Allow() {
			c.enqueue(protocol.NewErrorFrame("rate-limited", "too many frames, slow down"))
			continue
		}

		frame, err := protocol.ParseClientFrame(raw)
		if err != nil {
			// Malformed frames never close the connection.
			c.enqueue(protocol.NewErrorFrame("bad-frame", "could not parse frame: "+err.Error()))
			continue
		}

		switch frame.Type {
		case protocol.FrameSubscribe:
			if frame.SessionID == "" {
				c.enqueue(protocol.NewErrorFrame("bad-frame", "subscribe requires sessionId"))
				continue
			}
			c.server.subscribe(c, frame.SessionID)
		case protocol.FrameUnsubscribe:
			c.server.unsubscribe(c)
		default:
			c.enqueue(protocol.NewErrorFrame("bad-frame", "unknown frame type: "+frame.Type))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			return
		}
	}
}

// enqueue delivers a frame without blocking. A slow client's full buffer
// means dropping that frame for that client only; every other client's
// fan-out must never wait on it. "messages" frames are the ones
// that can go stale and be safely dropped since the next tail advance
// carries a fresh byteRange; lifecycle frames are small and infrequent
// enough that the buffer practically never fills on their account alone.
func (c *Client) enqueue(frame protocol.ServerFrame) {
	select {
	case c.send <- frame:
	default:
		c.logger.Warn("transport: dropping frame for slow client", "id", c.id, "type", frame.Type)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}
