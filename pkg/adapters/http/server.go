// Package http exposes live sessions and authored graphs over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/metrics"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/codec"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the session and graph routes.
type Server struct {
	Sessions     *session.Manager
	Streams      *StreamManager
	DefaultGraph string
	Version      string
	Logger       *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithDefaultGraph names the graph used when a request names none.
func WithDefaultGraph(name string) Option {
	return func(s *Server) {
		s.DefaultGraph = name
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	Graph string `json:"graph"`
}

// MinigameRequest is the body of POST /sessions/{id}/minigame.
type MinigameRequest struct {
	Success bool `json:"success"`
}

// NewHandler creates the HTTP handler for the session manager.
func NewHandler(sessions *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		Sessions: sessions,
		Streams:  NewStreamManager(),
		Version:  "dev",
		Logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(enableCORS)
	if router, err := newRouter(); err != nil {
		s.Logger.Error("Request validation disabled", "err", err)
	} else {
		r.Use(s.validateRequests(router))
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/graphs", s.ListGraphs)
	r.Get("/graph", s.GetGraph)
	r.Get("/graph/mermaid", s.GetMermaid)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/advance", s.Advance)
			r.Post("/restart", s.Restart)
			r.Post("/choices/{index}", s.Pick)
			r.Post("/minigame", s.CompleteMinigame)
		})
	})
	r.Get("/events", s.SubscribeEvents)

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records request counts and latency per route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrGraphNotFound):
		status = http.StatusNotFound
	case errors.Is(err, memory.ErrNoSuchChoice), errors.Is(err, memory.ErrNoMinigame):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error(op+" failed", "err", err)
	} else {
		s.Logger.Debug(op+" rejected", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) graphName(r *http.Request) string {
	var name string
	if err := runtime.BindQueryParameter("form", true, false, "name", r.URL.Query(), &name); err != nil || name == "" {
		return s.DefaultGraph
	}
	return name
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":           "arbor-http",
		"version":       s.Version,
		"default_graph": s.DefaultGraph,
	})
}

// ListGraphs handles the GET /graphs request.
func (s *Server) ListGraphs(w http.ResponseWriter, r *http.Request) {
	names, err := s.Sessions.Loader().List(r.Context())
	if err != nil {
		s.writeError(w, "list graphs", err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// GetGraph handles the GET /graph request. It returns the portable document.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.Sessions.Loader().Load(r.Context(), s.graphName(r))
	if err != nil {
		s.writeError(w, "load graph", err)
		return
	}
	doc, err := codec.Encode(g)
	if err != nil {
		s.writeError(w, "encode graph", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetMermaid handles the GET /graph/mermaid request. With a session_id the
// session's path is highlighted.
func (s *Server) GetMermaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := s.graphName(r)
	var overlay *graph.GraphOverlay

	if id := r.URL.Query().Get("session_id"); id != "" {
		view, err := s.Sessions.Get(ctx, id)
		if err != nil {
			s.writeError(w, "get session", err)
			return
		}
		name = view.Graph
		overlay = &graph.GraphOverlay{VisitedNodes: view.History, CurrentNode: view.CurrentNodeID}
	}

	g, err := s.Sessions.Loader().Load(ctx, name)
	if err != nil {
		s.writeError(w, "load graph", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(g, overlay))
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.writeError(w, "list sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// CreateSession handles the POST /sessions request.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			s.Logger.Warn("CreateSession: Invalid request body", "err", err)
			return
		}
	}
	if body.Graph == "" {
		body.Graph = s.DefaultGraph
	}

	view, err := s.Sessions.Create(r.Context(), body.Graph)
	if err != nil {
		s.writeError(w, "create session", err)
		return
	}
	metrics.SessionsActive.Inc()
	writeJSON(w, http.StatusCreated, view)
}

// GetSession handles the GET /sessions/{id} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteSession handles the DELETE /sessions/{id} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		s.writeError(w, "delete session", err)
		return
	}
	metrics.SessionsActive.Dec()
	s.Streams.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

// Advance handles the POST /sessions/{id}/advance request.
func (s *Server) Advance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := s.Sessions.Advance(r.Context(), id)
	s.respond(w, id, "advance", view, err)
}

// Restart handles the POST /sessions/{id}/restart request.
func (s *Server) Restart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := s.Sessions.Restart(r.Context(), id)
	s.respond(w, id, "restart", view, err)
}

// Pick handles the POST /sessions/{id}/choices/{index} request.
func (s *Server) Pick(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var index int
	err := runtime.BindStyledParameterWithOptions("simple", "index", chi.URLParam(r, "index"), &index,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "choice index must be an integer"})
		return
	}
	view, err := s.Sessions.Pick(r.Context(), id, index)
	s.respond(w, id, "pick", view, err)
}

// CompleteMinigame handles the POST /sessions/{id}/minigame request.
func (s *Server) CompleteMinigame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body MinigameRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		s.Logger.Warn("CompleteMinigame: Invalid request body", "err", err)
		return
	}
	view, err := s.Sessions.CompleteMinigame(r.Context(), id, body.Success)
	s.respond(w, id, "complete minigame", view, err)
}

// respond writes the view and broadcasts it to the session's subscribers.
func (s *Server) respond(w http.ResponseWriter, id, op string, view session.View, err error) {
	if err != nil {
		s.writeError(w, op, err)
		return
	}
	if bytes, err := json.Marshal(view); err == nil {
		s.Streams.Broadcast(id, string(bytes))
	}
	writeJSON(w, http.StatusOK, view)
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan string]struct{} // SessionID -> Set of Channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan string]struct{}),
	}
}

// Subscribe registers a channel for the session's updates. The returned
// function unsubscribes it.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Broadcast sends msg to every subscriber of the session.
func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			slog.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// Close ends every subscription of the session.
func (sm *StreamManager) Close(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for ch := range sm.subscribers[sessionID] {
		close(ch)
	}
	delete(sm.subscribers, sessionID)
}

// SubscribeEvents handles the GET /events request (SSE).
// With a session_id it streams the session's views; without one it streams
// a reload event whenever the graph source changes.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}
	ctx := r.Context()

	var events <-chan string
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		watchable, ok := s.Sessions.Loader().(ports.Watchable)
		if !ok {
			http.Error(w, "graph source cannot be watched", http.StatusNotImplemented)
			return
		}
		changes, err := watchable.Watch(ctx)
		if err != nil {
			s.writeError(w, "watch", err)
			return
		}
		events = reloads(ctx, changes)
	} else {
		if _, err := s.Sessions.Get(ctx, sessionID); err != nil {
			s.writeError(w, "get session", err)
			return
		}
		ch, cancel := s.Streams.Subscribe(sessionID)
		defer cancel()
		events = ch
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func reloads(ctx context.Context, changes <-chan struct{}) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for range changes {
			metrics.GraphReloads.WithLabelValues("signaled").Inc()
			select {
			case out <- "reload":
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
