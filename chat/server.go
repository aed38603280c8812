package chat

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"chatd/logger"
	"chatd/ratelimit"

	"go.uber.org/zap"
)

const (
	rateLimitRPS        = 20
	rateLimitBurst       = 40
	rateLimitIdleExpiry  = 10 * time.Minute
	rateLimitSweepEvery  = time.Minute
)

// ServerConfig bundles what Server needs to bind and secure its listener.
type ServerConfig struct {
	Host            string
	Port            int
	CertificateFile string
	KeyFile         string
}

// Server wires the Registry and Listener into a runnable process,
// exposing the admin stub boundary described in SPEC_FULL §4.12:
// Shutdown and Snapshot are the only surface an external console would
// need, with no stdin reader implemented here.
type Server struct {
	reg      *Registry
	listener *Listener
	limiter  *ratelimit.Limiter
	ln       net.Listener

	cancel context.CancelFunc
	done   chan struct{}
}

// NewServer builds a Server bound to cfg.Host:cfg.Port with a TLS 1.3-only
// config loaded from cfg's certificate files (§6).
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertificateFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls certificate: %w", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		MaxVersion:   tls.VersionTLS13,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("listen %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	reg := NewRegistry(ctx)
	limiter := ratelimit.New(rateLimitRPS, rateLimitBurst, rateLimitIdleExpiry)
	listener := NewListener(tlsConfig, reg, limiter)

	return &Server{
		reg:      reg,
		listener: listener,
		limiter:  limiter,
		ln:       ln,
		done:     make(chan struct{}),
	}, nil
}

// Run blocks accepting connections until ctx is canceled or the listener
// fails. It always closes the done channel on return so Shutdown can wait
// on it.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer close(s.done)

	go s.limiter.Run(ctx, rateLimitSweepEvery)

	logger.Info("listening", zap.String("addr", s.ln.Addr().String()))
	return s.listener.Serve(ctx, s.ln)
}

// Shutdown cancels the accept loop and waits (up to ctx's deadline) for
// Run to return.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot exposes coarse registry counts for an external admin console
// (SPEC_FULL §4.12); no console is implemented in this repo.
func (s *Server) Snapshot() Snapshot {
	return s.reg.Snapshot()
}
