// internal/server/server.go
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aegislab/aegishive/internal/audit"
	"github.com/aegislab/aegishive/internal/config"
	"github.com/aegislab/aegishive/internal/detect"
	"github.com/aegislab/aegishive/internal/forensic"
	"github.com/aegislab/aegishive/internal/history"
)

// Server is the network-facing surface: submission endpoint, dashboard,
// health, and metrics.
type Server struct {
	cfg    *config.Config
	server *http.Server
}

// New wires the HTTP surface over the shared detection components.
func New(cfg *config.Config, engine *detect.Engine, reporter *forensic.Reporter, ledger *history.Ledger, capture *audit.CaptureLog) *Server {
	mux := http.NewServeMux()
	mux.Handle("/analyze", NewAnalyzeHandler(engine, reporter, ledger, capture, cfg.APIKey, cfg.Server.MaxPayloadBytes))
	mux.Handle("/dashboard", NewDashboardHandler(ledger))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  cfg.Server.IdleTimeout(),
	}

	return &Server{cfg: cfg, server: srv}
}

// listen opens the TCP listener, wrapping it in TLS when a cert and
// key are configured.
func (s *Server) listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Server.ListenAddr)
	if err != nil {
		return nil, err
	}
	if s.cfg.Server.TLSCert != "" && s.cfg.Server.TLSKey != "" {
		cert, err := tls.LoadX509KeyPair(s.cfg.Server.TLSCert, s.cfg.Server.TLSKey)
		if err != nil {
			ln.Close()
			return nil, fmt.Errorf("load TLS cert: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
	}
	return ln, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	log.Printf("Hive orchestrator listening on %s", ln.Addr())
	return s.serve(ctx, ln)
}

// RunAndGetAddr binds the listener, returns the bound address, and
// serves in the background until ctx is cancelled. Used with a ":0"
// listen address when the port is auto-assigned.
func (s *Server) RunAndGetAddr(ctx context.Context) (string, error) {
	ln, err := s.listen()
	if err != nil {
		return "", err
	}
	go func() {
		if err := s.serve(ctx, ln); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()
	return ln.Addr().String(), nil
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
