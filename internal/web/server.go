// Package web provides an HTTP status server for the range-monitor daemon.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/sweeney/range-monitor/internal/status"
)

// DefaultPushInterval is how often /ws clients are checked for new state.
const DefaultPushInterval = 250 * time.Millisecond

// Server serves the status page over HTTP.
type Server struct {
	httpServer   *http.Server
	tracker      *status.Tracker
	upgrader     websocket.Upgrader
	pushInterval time.Duration

	quit     chan struct{}
	quitOnce sync.Once
}

// New creates a Server that reads state from the given tracker. If metrics is
// non-nil it is mounted at /metrics.
func New(addr string, tracker *status.Tracker, metrics http.Handler) *Server {
	s := &Server{
		tracker:      tracker,
		pushInterval: DefaultPushInterval,
		quit:         make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and ends any /ws streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.quitOnce.Do(func() { close(s.quit) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		slog.Warn("render index", slog.Any("error", err))
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleWS streams the JSON status: once on connect, then whenever the
// tracked state or the MQTT connection changes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snap := s.tracker.Snapshot()
	if err := conn.WriteMessage(websocket.TextMessage, status.FormatJSON(snap)); err != nil {
		return
	}
	lastSeq, lastMQTT := snap.Seq, snap.MQTTConnected

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-s.quit:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
			snap := s.tracker.Snapshot()
			if snap.Seq == lastSeq && snap.MQTTConnected == lastMQTT {
				continue
			}
			lastSeq, lastMQTT = snap.Seq, snap.MQTTConnected
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, status.FormatJSON(snap)); err != nil {
				return
			}
		}
	}
}
