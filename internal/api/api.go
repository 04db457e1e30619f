// Package api provides HTTP handlers and the main API server logic for the
// loan intake service.
//
// It exposes RESTful endpoints for creating intake sessions, submitting
// conversational turns, uploading documents, asking knowledge base questions,
// and downloading completed applications. Inbound SMS is bridged onto the
// same engine through a Twilio webhook.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/crestline/loanintake/internal/engine"
	"github.com/crestline/loanintake/internal/kb"
	"github.com/crestline/loanintake/internal/messaging"
	"github.com/crestline/loanintake/internal/store"
	"github.com/crestline/loanintake/internal/upload"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Timeouts applied to the HTTP server and per-request work.
const (
	DefaultReadTimeout    = 15 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option configures Opts.
type Option func(*Opts)

// WithAddr sets the listen address for the API server.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server bundles the dependencies the HTTP handlers operate on.
type Server struct {
	st      store.Store
	eng     *engine.Engine
	kb      *kb.KnowledgeBase
	uploads *upload.Validator
	sender  messaging.Sender
	addr    string
	httpSrv *http.Server
}

// NewServer creates an API server. The knowledge base and sender may be nil;
// the corresponding endpoints then report the feature as unavailable.
func NewServer(st store.Store, eng *engine.Engine, knowledge *kb.KnowledgeBase, uploads *upload.Validator, sender messaging.Sender, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		st:      st,
		eng:     eng,
		kb:      knowledge,
		uploads: uploads,
		sender:  sender,
		addr:    cfg.Addr,
	}
}

// Handler builds the route table. Exposed separately so tests can drive the
// mux through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", s.sessionsHandler)
	mux.HandleFunc("/sessions/", s.sessionSubtreeHandler)
	mux.HandleFunc("/applications", s.listApplicationsHandler)
	mux.HandleFunc("/applications/", s.applicationSubtreeHandler)
	mux.HandleFunc("/ask", s.askHandler)
	mux.HandleFunc("/webhooks/twilio", s.twilioWebhookHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: loan intake API listening", "addr", s.addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: graceful shutdown failed", "error", err)
			return fmt.Errorf("server shutdown: %w", err)
		}
		slog.Info("Server.Run: server stopped")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server.Run: listener failed", "error", err, "addr", s.addr)
			return fmt.Errorf("listen on %s: %w", s.addr, err)
		}
		return nil
	}
}
