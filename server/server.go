// Package server exposes the orchestrator over HTTP: a chat endpoint, a
// websocket progress channel, Prometheus metrics and a health probe.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smallnest/lexgraph/backend"
	"github.com/smallnest/lexgraph/log"
	"github.com/smallnest/lexgraph/observability"
	"github.com/smallnest/lexgraph/orchestrator"
)

const defaultMaxBody = 64 << 10

// Answerer runs one chat turn.
type Answerer interface {
	Run(ctx context.Context, sessionID, question string) (orchestrator.TurnState, error)
}

// ProgressSource streams a session's progress over a websocket.
type ProgressSource interface {
	ServeWS(w http.ResponseWriter, r *http.Request, sessionID string)
}

// Options configures New.
type Options struct {
	// Progress serves /v1/progress; nil disables the route.
	Progress ProgressSource
	Metrics  *observability.Metrics
	// Gatherer backs /metrics. Nil serves the default gatherer.
	Gatherer prometheus.Gatherer
	// MaxBodyBytes limits chat request bodies. Zero means 64 KiB.
	MaxBodyBytes int64
	Logger       log.Logger
}

type Server struct {
	answerer Answerer
	progress ProgressSource
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	maxBody  int64
	logger   log.Logger
}

func New(answerer Answerer, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	return &Server{
		answerer: answerer,
		progress: opts.Progress,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		maxBody:  opts.MaxBodyBytes,
		logger:   log.OrDefault(opts.Logger),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler(s.gatherer).ServeHTTP(w, r)
	})

	r.Post("/v1/chat/{sessionID}", s.handleChat)
	r.Get("/v1/progress/{sessionID}/ws", s.handleProgressWS)

	return r
}

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	RequestID string                 `json:"request_id,omitempty"`
	Answer    string                 `json:"answer"`
	HTML      string                 `json:"html"`
	Depth     int                    `json:"depth"`
	Documents []backend.Document     `json:"documents"`
	Failures  []orchestrator.Failure `json:"failures,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"progress": s.progress != nil,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	reqID := middleware.GetReqID(r.Context())
	final, err := s.answerer.Run(r.Context(), sessionID, req.Question)
	switch {
	case err == nil:
	case errors.Is(err, orchestrator.ErrEmptyQuestion), errors.Is(err, orchestrator.ErrEmptySession):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Error("server: request %s for session %s timed out: %v", reqID, sessionID, err)
		respondError(w, http.StatusGatewayTimeout, "timeout", "the answer took too long, please try again")
		return
	default:
		s.logger.Error("server: request %s for session %s failed: %v", reqID, sessionID, err)
		respondError(w, http.StatusInternalServerError, "internal", "failed to answer the question")
		return
	}

	docs := final.Documents
	if docs == nil {
		docs = []backend.Document{}
	}
	respondJSON(w, http.StatusOK, chatResponse{
		RequestID: reqID,
		Answer:    final.Answer,
		HTML:      RenderMarkdown(final.Answer),
		Depth:     final.Depth,
		Documents: docs,
		Failures:  final.Failures,
	})
}

func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	if s.progress == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "progress channel not configured")
		return
	}
	s.progress.ServeWS(w, r, sessionID)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(route, status)
	})
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
