package chat

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"chatd/logger"
	"chatd/ratelimit"
	"chatd/tools/ids"
	"chatd/tools/safe"
	"chatd/wire"

	"go.uber.org/zap"
)

// Listener defaults (§4.5).
const (
	DefaultPort              = 55555
	handshakeTimeout         = 60 * time.Second
	readTimeout              = 60 * time.Second
	heartbeatCheckInterval   = 10 * time.Second
	maxHeartbeatsPerInterval = 10
	readBufferSize           = 8192
)

// Listener runs the accept loop: rate-limit admission, TLS handshake,
// registration, and per-connection read/dispatch loops, grounded in the
// teacher's service/chat/ws_server.go HandleWS read-loop shape
// generalized from a websocket upgrade to a raw TLS accept.
type Listener struct {
	tlsConfig *tls.Config
	reg       *Registry
	router    *Router
	limiter   *ratelimit.Limiter
	connIDs   *ids.Counter
}

// NewListener builds a Listener. tlsConfig and reg are required; limiter
// is optional (a nil limiter disables admission control).
func NewListener(tlsConfig *tls.Config, reg *Registry, limiter *ratelimit.Limiter) *Listener {
	safe.MustNotNil(tlsConfig, "tlsConfig")
	safe.MustNotNil(reg, "reg")
	return &Listener{
		tlsConfig: tlsConfig,
		reg:       reg,
		router:    NewRouter(reg),
		limiter:   limiter,
		connIDs:   ids.NewCounter(),
	}
}

// Serve accepts connections on ln until ctx is canceled. It returns once
// the listener has been closed, either by cancellation or by an Accept
// error.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		addr := raw.RemoteAddr().String()
		if l.limiter != nil && !l.limiter.Allow(hostOf(addr)) {
			_ = raw.Close()
			continue
		}

		safe.SafeGo(func() { l.handle(ctx, raw) })
	}
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func (l *Listener) handle(ctx context.Context, raw net.Conn) {
	tlsConn := tls.Server(raw, l.tlsConfig)

	if err := raw.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		_ = raw.Close()
		return
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		logger.Warn("tls handshake failed", zap.String("remote", raw.RemoteAddr().String()), zap.Error(err))
		_ = tlsConn.Close()
		return
	}
	_ = raw.SetDeadline(time.Time{})

	c := NewConnection(l.connIDs.Next(), tlsConn)
	if err := l.reg.RegisterConnection(c); err != nil {
		logger.Warn("register connection failed", zap.Error(err))
		c.Close()
		return
	}

	l.readLoop(ctx, c)

	_ = l.reg.RemoveConnection(c)
	c.Close()
}

func (l *Listener) readLoop(ctx context.Context, c *Connection) {
	framer := wire.NewFramer()
	buf := make([]byte, readBufferSize)
	heartbeatWindow := time.Now().Add(heartbeatCheckInterval)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		n, err := c.Read(buf)
		if err != nil {
			return
		}
		framer.Write(buf[:n])

		for framer.CanRead() {
			raw, err := framer.Read()
			if err != nil {
				logger.Warn("framer read failed", zap.Int64("conn_id", c.ID()), zap.Error(err))
				return
			}
			frame, err := wire.Decode(raw)
			if err != nil {
				logger.Warn("frame decode failed", zap.Int64("conn_id", c.ID()), zap.Error(err))
				return
			}

			if frame.Type == wire.HeartBeat {
				heartbeats := c.BumpHeartbeat()
				if time.Now().After(heartbeatWindow) {
					if heartbeats > maxHeartbeatsPerInterval {
						logger.Warn("heartbeat flood, closing connection",
							zap.Int64("conn_id", c.ID()), zap.Int32("count", heartbeats))
						return
					}
					c.ResetHeartbeat()
					heartbeatWindow = time.Now().Add(heartbeatCheckInterval)
				}
				continue
			}

			if frame.Type != wire.Text {
				continue
			}
			if len(frame.Payload) == 0 {
				logger.Warn("empty text payload", zap.Int64("conn_id", c.ID()))
				return
			}

			respPayload := l.router.Dispatch(c, frame.Payload)
			c.WriteFrame(wire.Frame{
				Type:         wire.Text,
				SequenceSize: 1,
				Sequence:     0,
				RequestID:    frame.RequestID,
				Payload:      respPayload,
			})
		}
	}
}
