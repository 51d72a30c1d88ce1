// Admin HTTP server for the receiver: JSON status plus a few operator
// interventions.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"vjlink/internal/receiver"
)

// Server exposes receiver diagnostics and control over HTTP.
type Server struct {
	rx  *receiver.Receiver
	ws  http.Handler // optional websocket hub mount
	log *slog.Logger
}

// NewServer creates an admin server. ws may be nil when the receiver does
// not host a websocket hub.
func NewServer(rx *receiver.Receiver, ws http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{rx: rx, ws: ws, log: log}
}

// Handler returns the route table, usable directly with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/effects", s.handleEffects)
	mux.HandleFunc("/force-level", s.handleForceLevel)
	mux.HandleFunc("/resume-auto", s.handleResumeAuto)
	mux.HandleFunc("/emergency-stop", s.handleEmergencyStop)
	if s.ws != nil {
		mux.Handle("/ws", s.ws)
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.rx.Status())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.rx.History())
}

func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.rx.Status().Effects)
}

func (s *Server) handleForceLevel(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(r.URL.Query().Get("level"))
	if err != nil || level < 0 || level > 5 {
		http.Error(w, "level must be 0..5", http.StatusBadRequest)
		return
	}
	s.rx.ForceLevel(level)
	s.log.Info("level forced via admin", "level", level)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResumeAuto(w http.ResponseWriter, r *http.Request) {
	s.rx.ResumeAuto()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	s.rx.EmergencyStop()
	s.log.Warn("emergency stop via admin")
	w.WriteHeader(http.StatusNoContent)
}
