package chat

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// FrameWriter is the transport side of one connection. The gorilla adapter
// below is the production implementation; tests plug in fakes.
type FrameWriter interface {
	WriteFrame(data []byte) error
	CloseWith(code int, reason string) error
}

// SendResult is what a single delivery attempt reports back to the registry.
type SendResult int

const (
	SendDelivered SendResult = iota
	SendDead                 // frame not written; from Conn.Send it means the handle must be pruned
)

func (r SendResult) String() string {
	if r == SendDelivered {
		return "delivered"
	}
	return "dead"
}

// Conn represents one live transport session of a user. A user may hold many
// (devices / tabs); each is registered separately under its own ConnID.
type Conn struct {
	ConnID    string
	UserID    string
	Remote    string
	CreatedAt time.Time

	mu     sync.Mutex // serializes writes; gorilla/websocket forbids concurrent writers
	w      FrameWriter
	closed bool
}

func NewConn(connID, userID string, w FrameWriter) *Conn {
	return &Conn{
		ConnID:    connID,
		UserID:    userID,
		CreatedAt: time.Now(),
		w:         w,
	}
}

// Send writes one frame. Any transport error, or a write to a handle that has
// already been closed, reports SendDead.
func (c *Conn) Send(data []byte) SendResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.w == nil {
		return SendDead
	}
	if err := c.w.WriteFrame(data); err != nil {
		c.closed = true
		return SendDead
	}
	return SendDelivered
}

// Close sends a close frame with code and releases the transport. Safe to call
// more than once.
func (c *Conn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return
	}
	_ = c.w.CloseWith(code, reason)
	c.closed = true
}

func (c *Conn) String() string {
	return c.UserID + "/" + c.ConnID
}

// ===== gorilla/websocket 适配 =====

type wsWriter struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	closeOnce    sync.Once
}

func newWSWriter(ws *websocket.Conn, writeTimeout time.Duration) *wsWriter {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &wsWriter{ws: ws, writeTimeout: writeTimeout}
}

func (w *wsWriter) WriteFrame(data []byte) error {
	if err := w.ws.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return err
	}
	return w.ws.WriteMessage(websocket.TextMessage, data)
}

// CloseWith writes a close control frame (best effort) and closes the socket,
// which also unblocks the session's read loop.
func (w *wsWriter) CloseWith(code int, reason string) error {
	var err error
	w.closeOnce.Do(func() {
		_ = w.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(w.writeTimeout))
		err = w.ws.Close()
	})
	return err
}

func remoteOf(ws *websocket.Conn) string {
	if ws == nil {
		return ""
	}
	var ra net.Addr = ws.RemoteAddr()
	if ra == nil {
		return ""
	}
	return ra.String()
}
