// Package chassis runs the HTTP listener of the service: the JSON API and
// the MCP streamable HTTP endpoint share one handler, served in clear text
// or over TLS (files or a generated development certificate). Every
// response carries the standard security headers.
package chassis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// TLS modes.
const (
	TLSOff   = "off"
	TLSDev   = "dev"
	TLSFiles = "files"
)

// Config holds configuration for the chassis server.
type Config struct {
	Addr     string       // Listen address (e.g. ":8430")
	TLSMode  string       // off (default), dev or files
	CertFile string       // TLSFiles cert path
	KeyFile  string       // TLSFiles key path
	Handler  http.Handler // API, metrics and MCP routes
	Logger   *slog.Logger
}

// Server is the HTTP listener.
type Server struct {
	addr    string
	logger  *slog.Logger
	tlsCfg  *tls.Config
	handler http.Handler

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// New prepares a server; nothing listens until Start.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Handler == nil {
		return nil, errors.New("chassis: nil handler")
	}

	s := &Server{addr: cfg.Addr, logger: cfg.Logger, handler: cfg.Handler}
	switch cfg.TLSMode {
	case "", TLSOff:
	case TLSDev:
		host, _, _ := net.SplitHostPort(cfg.Addr)
		c, err := DevelopmentTLSConfig(host)
		if err != nil {
			return nil, fmt.Errorf("generate dev TLS: %w", err)
		}
		s.tlsCfg = c
		cfg.Logger.Info("TLS: self-signed dev cert generated")
	case TLSFiles:
		c, err := ProductionTLSConfig(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load TLS cert: %w", err)
		}
		s.tlsCfg = c
		cfg.Logger.Info("TLS: certs loaded, reloaded on change", "cert", cfg.CertFile)
	default:
		return nil, fmt.Errorf("chassis: unknown tls mode %q", cfg.TLSMode)
	}
	return s, nil
}

// securityHeaders wraps an http.Handler and adds standard security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; frame-ancestors 'none'")
		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		next.ServeHTTP(w, r)
	})
}

// Handler returns the served handler, security headers included.
func (s *Server) Handler() http.Handler { return securityHeaders(s.handler) }

// Addr returns the bound address once Start has opened the listener.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Start listens and serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	proto := "HTTP/1.1"
	if s.tlsCfg != nil {
		proto = "HTTP/1.1+HTTP/2 (TLS)"
	}

	s.mu.Lock()
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		TLSConfig:         s.tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	s.logger.Info("chassis started", "addr", ln.Addr().String(), "proto", proto)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if srv.TLSConfig != nil {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}
	s.logger.Info("chassis stopping")
	err := s.srv.Shutdown(ctx)
	s.logger.Info("chassis stopped")
	return err
}
