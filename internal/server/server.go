// Package server exposes an open session over HTTP: the table and checker
// report as JSON, and model change notifications over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/core/graph"
	"github.com/FocuswithJustin/tfstbench/core/session"
	"github.com/FocuswithJustin/tfstbench/core/table"
	"github.com/FocuswithJustin/tfstbench/internal/logging"
)

// Version is reported by /health.
var Version = "dev"

// Server serializes access to one session.
type Server struct {
	mu       sync.Mutex
	sess     *session.Session
	hub      *Hub
	cors     CORSConfig
	upgrader websocket.Upgrader
	started  time.Time
}

// New wraps sess and forwards its model and table changes to the hub.
func New(sess *session.Session, cors CORSConfig) *Server {
	s := &Server{
		sess:    sess,
		hub:     NewHub(),
		cors:    cors,
		started: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return cors.allows(r.Header.Get("Origin")) },
	}
	sess.Model().AddObserver(graph.ObserverFunc(func(c graph.Change) {
		s.notify("graph", c)
	}))
	sess.Table().AddObserver(graph.ObserverFunc(func(c graph.Change) {
		s.notify("table", c)
	}))
	return s
}

// notify runs on the goroutine that changed the session, which holds s.mu.
func (s *Server) notify(source string, c graph.Change) {
	s.hub.Broadcast(Notification{
		Source:   source,
		Kind:     c.Kind.String(),
		Modified: c.Modified,
		Sentence: s.sess.Current(),
	})
}

// Hub returns the notification hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Do runs fn with exclusive access to the session.
func (s *Server) Do(fn func(*session.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.sess)
}

// Handler returns the routes wrapped in the logging, security and CORS
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /table", s.handleTable)
	mux.HandleFunc("GET /check", s.handleCheck)
	mux.HandleFunc("GET /sentence", s.handleSentence)
	mux.HandleFunc("POST /sentence", s.handleLoadSentence)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		s.hub.serve(&s.upgrader, w, r)
	})

	var h http.Handler = SecurityHeaders(mux)
	h = CORSMiddleware(s.cors, h)
	return logging.Middleware(h)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.ServerStartup("http", addr, "sentences", s.sess.SentenceCount())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// HealthInfo is the /health payload.
type HealthInfo struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Sentence  int    `json:"sentence"`
	Sentences int    `json:"sentences"`
	Clients   int    `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	info := HealthInfo{
		Status:    "healthy",
		Version:   Version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Sentence:  s.sess.Current(),
		Sentences: s.sess.SentenceCount(),
	}
	s.mu.Unlock()
	info.Clients = s.hub.ClientCount()
	respond(w, http.StatusOK, info)
}

// TableView is the /table payload.
type TableView struct {
	Sentence int         `json:"sentence"`
	Text     string      `json:"text"`
	Filter   string      `json:"filter"`
	Columns  int         `json:"columns"`
	Rows     []table.Row `json:"rows"`
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.sess.Table()
	respond(w, http.StatusOK, TableView{
		Sentence: s.sess.Current(),
		Text:     s.sess.Text(),
		Filter:   t.Filter().Mode().String(),
		Columns:  t.ColumnCount(),
		Rows:     t.Rows(),
	})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess.Current() == 0 {
		respondError(w, http.StatusConflict, "NO_SENTENCE", "no sentence loaded")
		return
	}
	respond(w, http.StatusOK, s.sess.Check())
}

// SentenceInfo is the /sentence payload.
type SentenceInfo struct {
	Current    int    `json:"current"`
	Count      int    `json:"count"`
	Text       string `json:"text"`
	Overridden bool   `json:"overridden"`
	Modified   bool   `json:"modified"`
}

func (s *Server) sentenceInfo() SentenceInfo {
	return SentenceInfo{
		Current:    s.sess.Current(),
		Count:      s.sess.SentenceCount(),
		Text:       s.sess.Text(),
		Overridden: s.sess.Overridden(),
		Modified:   s.sess.Model().Modified(),
	}
}

func (s *Server) handleSentence(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	respond(w, http.StatusOK, s.sentenceInfo())
}

// LoadRequest selects the sentence to show.
type LoadRequest struct {
	N int `json:"n"`
}

func (s *Server) handleLoadSentence(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	loaded, err := s.sess.LoadSentence(r.Context(), req.N)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if !loaded {
		respondError(w, http.StatusConflict, "LOAD_IN_PROGRESS", "a sentence is already being loaded")
		return
	}
	respond(w, http.StatusOK, s.sentenceInfo())
}

// statusFor maps the error taxonomy to HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, tfsterrors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, tfsterrors.ErrUserError):
		return http.StatusConflict, "USER_ERROR"
	case errors.Is(err, tfsterrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, tfsterrors.ErrMalformedGraph):
		return http.StatusUnprocessableEntity, "MALFORMED_GRAPH"
	case errors.Is(err, tfsterrors.ErrCommandFailed):
		return http.StatusBadGateway, "COMMAND_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "request_failed", "path", r.URL.Path, "error", err)
	}
	respondError(w, status, code, err.Error())
}
