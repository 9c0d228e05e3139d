// Package server exposes the agent over HTTP: a streamed /ask endpoint and
// a /suggest-questions endpoint, with CORS for browser frontends. Questions
// arriving before the pipeline finished constructing get an explicit 503
// rather than an error escaping the stream.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/cadueduardo/MAF/internal/domain"
)

// Service is the agent surface the HTTP layer consumes.
type Service interface {
	Ask(ctx context.Context, question string, history []domain.Message) <-chan string
	Suggest(ctx context.Context) []string
}

// Server is the HTTP front of the agent.
type Server struct {
	router  *mux.Router
	handler http.Handler
	service atomic.Pointer[serviceBox]
	log     *zap.SugaredLogger
}

// atomic.Pointer needs a concrete type; interfaces are boxed here.
type serviceBox struct {
	svc Service
}

// New creates the server. The agent may be attached later via SetService,
// so the HTTP listener can come up while the index is still building.
func New(allowedOrigins []string, log *zap.SugaredLogger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		log:    log,
	}
	s.router.Use(s.requestLog)
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)
	s.router.HandleFunc("/suggest-questions", s.handleSuggest).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	s.handler = c.Handler(s.router)
	return s
}

// SetService attaches the ready agent. Until this is called, /ask and
// /suggest-questions answer 503.
func (s *Server) SetService(svc Service) {
	s.service.Store(&serviceBox{svc: svc})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type askRequest struct {
	Question string           `json:"question"`
	History  []domain.Message `json:"history,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.ready(w)
	if !ok {
		return
	}
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "question is required"})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for fragment := range svc.Ask(r.Context(), req.Question, req.History) {
		if _, err := w.Write([]byte(fragment)); err != nil {
			// Client went away; the agent observes the request context and
			// stops producing.
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.ready(w)
	if !ok {
		return
	}
	suggestions := svc.Suggest(r.Context())
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the MAF (My Agent Friend) API!"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready fetches the attached service or answers 503.
func (s *Server) ready(w http.ResponseWriter) (Service, bool) {
	box := s.service.Load()
	if box == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "agent is not ready yet"})
		return nil, false
	}
	return box.svc, true
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Infow("request",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
