// Package web provides an HTTP status server for the irrigation daemon.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sweeney/garden-irrigator/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker. When
// metrics is non-nil it is mounted at /metrics.
func New(addr string, tracker *status.Tracker, metrics http.Handler) *Server {
	s := &Server{tracker: tracker}

	router := mux.NewRouter()
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", metrics)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

// handleJSON writes the status document, as MessagePack when the request
// carries format=msgpack.
func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.URL.Query().Get("format") == "msgpack" {
		w.Header().Set("Content-Type", "application/x-msgpack")
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(status.Build(snap)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
