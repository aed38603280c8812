package chat

import (
	"net"
	"sync"
	"time"

	"chatd/logger"
	"chatd/tools/safe"
	"chatd/wire"

	"go.uber.org/zap"
)

const laneBuffer = 256
const writeDeadline = 10 * time.Second

// Connection owns one TLS stream and a write serialization lane (§4.4):
// every write, from whatever task produced it, goes through this single
// consumer goroutine so frames for one socket are never byte-interleaved.
// Grounded in the teacher's conn_manager.go WsConn/writeBinary pair, which
// wraps a gorilla/websocket.Conn the same way this wraps a net.Conn.
type Connection struct {
	id     int64
	conn   net.Conn
	remote string

	lane     chan []byte
	laneOnce sync.Once
	closed   chan struct{}

	heartbeats int32
}

func NewConnection(id int64, c net.Conn) *Connection {
	conn := &Connection{
		id:     id,
		conn:   c,
		remote: c.RemoteAddr().String(),
		lane:   make(chan []byte, laneBuffer),
		closed: make(chan struct{}),
	}
	safe.SafeGo(conn.runLane)
	return conn
}

func (c *Connection) ID() int64        { return c.id }
func (c *Connection) RemoteAddr() string { return c.remote }

func (c *Connection) runLane() {
	for {
		select {
		case <-c.closed:
			return
		case frame, ok := <-c.lane:
			if !ok {
				return
			}
			if err := c.writeNow(frame); err != nil {
				logger.Warn("connection write failed", zap.Int64("conn_id", c.id), zap.Error(err))
			}
		}
	}
}

func (c *Connection) writeNow(frame []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_, err := c.conn.Write(frame)
	return err
}

// textFrame wraps a JSON notification payload in a Text frame with no
// sequencing, the shape every server-initiated push uses (§4.7
// notify_all).
func textFrame(payload []byte) wire.Frame {
	return wire.Frame{Type: wire.Text, Payload: payload}
}

// WriteFrame enqueues an encoded frame onto the lane. Safe to call from
// any goroutine. It does not write to the socket itself, but it waits
// while the lane's buffer is full until there is room or the connection
// is closed.
func (c *Connection) WriteFrame(f wire.Frame) {
	encoded := wire.Encode(f)
	select {
	case c.lane <- encoded:
	case <-c.closed:
	}
}

// Read blocks on the underlying socket; only the connection's own read
// loop may call this.
func (c *Connection) Read(buf []byte) (int, error) {
	return c.conn.Read(buf)
}

// SetReadDeadline proxies to the underlying socket.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// BumpHeartbeat increments the per-connection heartbeat counter and
// returns the new value.
func (c *Connection) BumpHeartbeat() int32 {
	c.heartbeats++
	return c.heartbeats
}

func (c *Connection) ResetHeartbeat() {
	c.heartbeats = 0
}

// Close shuts down the lane and attempts a best-effort TLS close,
// swallowing any error (§4.4).
func (c *Connection) Close() {
	c.laneOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}
