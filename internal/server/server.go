// Package server exposes the orchestrator as HTTP tool calls.
//
// Routes:
//
//	GET  /tools          list tool names
//	POST /tools/{tool}   call a tool with a JSON argument object
//	GET  /healthz        liveness, cache counters and upstream breaker state
//	GET  /metrics        Prometheus exposition
//
// Successful calls answer {"result": ...}. Failures answer
// {"error": {"code", "message"}} with 400 for invalid input, 404 for
// unknown packages or tools, 502 for upstream outages and 500 otherwise.
// Package manager operations always answer 200; their outcome is in the
// result.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/pkgintel/pkg/buildinfo"
	"github.com/matzehuels/pkgintel/pkg/errors"
	"github.com/matzehuels/pkgintel/pkg/httputil"
	"github.com/matzehuels/pkgintel/pkg/orchestrator"
)

// RequestIDHeader carries the per-call id in both directions.
const RequestIDHeader = "X-Request-ID"

// DefaultCallTimeout bounds one tool call. Package manager operations
// carry their own subprocess timeout inside it.
const DefaultCallTimeout = 5 * time.Minute

const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	Orchestrator *orchestrator.Orchestrator

	// Metrics serves /metrics. Nil disables the route.
	Metrics http.Handler

	// Breakers reports upstream circuit state on /healthz. Optional.
	Breakers *httputil.Breakers

	// CallTimeout bounds each tool call. Default DefaultCallTimeout.
	CallTimeout time.Duration

	Logger *log.Logger
}

// Server is the HTTP tool adapter.
type Server struct {
	orch     *orchestrator.Orchestrator
	breakers *httputil.Breakers
	metrics  http.Handler
	timeout  time.Duration
	logger   *log.Logger
	tools    map[string]toolFunc
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		orch:     opts.Orchestrator,
		breakers: opts.Breakers,
		metrics:  opts.Metrics,
		timeout:  opts.CallTimeout,
		logger:   opts.Logger,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultCallTimeout
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.tools = s.toolTable()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)

	r.Get("/healthz", s.handleHealth)
	r.Get("/tools", s.handleListTools)
	r.Post("/tools/{tool}", s.handleCall)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving tools", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type ctxKey struct{}

// requestID assigns every request a UUID unless the caller sent a valid
// one, and echoes it in the response.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": buildinfo.Version,
		"cache":   s.orch.CacheMetrics(),
	}
	if s.breakers != nil {
		body["upstreams"] = s.breakers.State()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": orchestrator.Tools})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "tool")
	logger := s.logger.With("tool", name, "request_id", RequestID(r.Context()))

	tool, ok := s.tools[name]
	if !ok {
		s.writeError(w, logger, errors.New(errors.ErrCodeNotFound, "unknown tool %q", name))
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var raw json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil && err != io.EOF {
		s.writeError(w, logger, errors.New(errors.ErrCodeInvalidInput, "malformed arguments: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	result, err := tool(ctx, raw)
	if err != nil {
		s.writeError(w, logger, err)
		return
	}
	logger.Debug("tool call complete", "duration", time.Since(start))
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

type errorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	status := StatusFor(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
		if errors.IsTransient(err) {
			code = errors.ErrCodeTimeout
		}
	}
	if status >= http.StatusInternalServerError {
		logger.Error("tool call failed", "status", status, "error", err)
	} else {
		logger.Debug("tool call rejected", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]any{"error": errorBody{Code: code, Message: errors.UserMessage(err)}})
}

// statusError pins the HTTP status of a tool failure.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func withStatus(status int, err error) error {
	return &statusError{status: status, err: err}
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	var se *statusError
	switch {
	case stderrors.As(err, &se):
		return se.status
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsTransient(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
