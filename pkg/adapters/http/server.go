// Package http exposes an engine over a JSON REST API built on chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/agentgraph"
	"github.com/aretw0/agentgraph/internal/logging"
	presentation "github.com/aretw0/agentgraph/internal/presentation/graph"
	"github.com/aretw0/agentgraph/internal/sanitize"
	"github.com/aretw0/agentgraph/pkg/domain"
	"github.com/aretw0/agentgraph/pkg/graph"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the subset of *agentgraph.Engine served over HTTP.
type Engine interface {
	Run(ctx context.Context, threadID string, input *domain.Message) (*domain.State, error)
	Thread(ctx context.Context, threadID string) (*domain.Checkpoint, error)
	Delete(ctx context.Context, threadID string) error
	Threads(ctx context.Context) ([]string, error)
	Graph() *graph.Graph
}

// Server holds the handler dependencies.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer selects the registry served on /metrics.
// Defaults to the global Prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:   engine,
		Streams:  NewStreamManager(),
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/threads", func(r chi.Router) {
		r.Get("/", s.ListThreads)
		r.Route("/{threadID}", func(r chi.Router) {
			r.Get("/", s.GetThread)
			r.Delete("/", s.DeleteThread)
			r.Post("/runs", s.CreateRun)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RunRequest is the body of POST /threads/{id}/runs.
// An empty input resumes the thread without adding a message.
type RunRequest struct {
	Input string `json:"input"`
}

// ThreadView is the JSON view of a checkpoint.
type ThreadView struct {
	ThreadID  string                 `json:"thread_id"`
	Step      int                    `json:"step"`
	NextNode  string                 `json:"next_node"`
	Status    domain.ExecutionStatus `json:"status"`
	Messages  int                    `json:"messages"`
	UpdatedAt string                 `json:"updated_at,omitempty"`
}

// ThreadResponse is returned by GET /threads/{id}.
type ThreadResponse struct {
	Thread ThreadView        `json:"thread"`
	Diff   *domain.StateDiff `json:"diff"`
}

// RunResponse is returned by POST /threads/{id}/runs, also on abort.
type RunResponse struct {
	Thread *ThreadView       `json:"thread,omitempty"`
	Diff   *domain.StateDiff `json:"diff"`
	Error  *ErrorBody        `json:"error,omitempty"`
}

func viewOf(cp *domain.Checkpoint) ThreadView {
	return ThreadView{
		ThreadID:  cp.ThreadID,
		Step:      cp.Step,
		NextNode:  cp.NextNode,
		Status:    cp.Status,
		Messages:  cp.State.Len(),
		UpdatedAt: cp.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreateRun handles POST /threads/{id}/runs.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	var body RunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "invalid request body: "+err.Error())
			return
		}
	}

	var input *domain.Message
	if body.Input != "" {
		clean, err := sanitize.Input(body.Input)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
			return
		}
		msg := domain.UserMessage(clean)
		input = &msg
	}

	// The diff covers the messages this run appended, input included.
	before := 0
	if cp, err := s.Engine.Thread(r.Context(), threadID); err == nil {
		before = cp.State.Len()
	}

	state, runErr := s.Engine.Run(r.Context(), threadID, input)

	resp := RunResponse{Diff: domain.Since(state, before)}
	if cp, err := s.Engine.Thread(r.Context(), threadID); err == nil {
		view := viewOf(cp)
		resp.Thread = &view
	}
	if !resp.Diff.IsEmpty() {
		if b, err := json.Marshal(resp.Diff); err == nil {
			s.Streams.Broadcast(threadID, string(b))
		}
	}

	status := http.StatusOK
	if runErr != nil {
		status = statusFor(runErr)
		resp.Error = errorBody(runErr)
		s.logger.Warn("run failed", "thread_id", threadID, "status", status, "err", runErr)
	}
	writeJSON(w, status, resp)
}

// ListThreads handles GET /threads.
func (s *Server) ListThreads(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Threads(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"threads": ids})
}

// GetThread handles GET /threads/{id}?since=N.
func (s *Server) GetThread(w http.ResponseWriter, r *http.Request) {
	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "since must be a non-negative integer")
			return
		}
		since = n
	}

	cp, err := s.Engine.Thread(r.Context(), chi.URLParam(r, "threadID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ThreadResponse{Thread: viewOf(cp), Diff: domain.Since(cp.State, since)})
}

// DeleteThread handles DELETE /threads/{id}.
func (s *Server) DeleteThread(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Delete(r.Context(), chi.URLParam(r, "threadID")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGraph handles GET /graph. ?format=mermaid returns the flowchart,
// ?thread=ID overlays where that thread resumes.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.Engine.Graph()
	if r.URL.Query().Get("format") != "mermaid" {
		writeJSON(w, http.StatusOK, presentation.Describe(g))
		return
	}

	var overlay *presentation.GraphOverlay
	if id := r.URL.Query().Get("thread"); id != "" {
		cp, err := s.Engine.Thread(r.Context(), id)
		if err != nil {
			s.fail(w, err)
			return
		}
		overlay = &presentation.GraphOverlay{CurrentNode: cp.NextNode, Terminated: cp.Status == domain.StatusTerminated}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(presentation.GenerateMermaid(g, overlay)))
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "agentgraph-http",
		"version": strings.TrimSpace(agentgraph.Version),
	})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	body := errorBody(err)
	writeError(w, status, body.Kind, body.Message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody describes a failed request or an aborted run.
type ErrorBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Step      int    `json:"step,omitempty"`
	Completed int    `json:"completed,omitempty"`
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]ErrorBody{"error": {Kind: kind, Message: msg}})
}

func errorBody(err error) *ErrorBody {
	body := &ErrorBody{Kind: string(domain.KindOf(err)), Message: err.Error()}
	var runErr *domain.RunError
	if errors.As(err, &runErr) {
		body.Step = runErr.Step
		body.Completed = runErr.Completed
	}
	switch {
	case errors.Is(err, domain.ErrCheckpointNotFound):
		body.Kind = "NotFound"
	case errors.Is(err, domain.ErrNoInput), errors.Is(err, domain.ErrPendingSteps):
		body.Kind = "InvalidRequest"
	}
	return body
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCheckpointNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPendingSteps):
		return http.StatusConflict
	}

	switch domain.KindOf(err) {
	case domain.KindModelInvocation:
		return http.StatusBadGateway
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindStepLimitExceeded:
		return http.StatusUnprocessableEntity
	case domain.KindCheckpointIO, domain.KindCanceled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
