// Package transport serves the query service over REST with chi.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/lineage/internal/domain/query"
	"github.com/rpggio/lineage/internal/filter"
	"github.com/rpggio/lineage/internal/filterlist"
)

// maxBodyBytes bounds request bodies; definitions and handle lists are small.
const maxBodyBytes = 4 << 20

// QueryService defines the filter operations served over REST.
type QueryService interface {
	ListRules(ns string) ([]query.RuleSummary, error)
	ListFilters(ns string) ([]query.FilterSummary, error)
	GetFilter(ns, name string) (*query.FilterDetail, error)
	Apply(ctx context.Context, req query.ApplyRequest) (*query.ApplyResult, error)
	Define(ctx context.Context, req query.DefineRequest) (*query.FilterDetail, error)
	Delete(ctx context.Context, ns, name string) error
	Reload(ctx context.Context) ([]filterlist.Diagnostic, error)
}

// Options configures the router.
type Options struct {
	// Auth guards /api and /mcp when set.
	Auth func(http.Handler) http.Handler
	// MCP is mounted at /mcp when set.
	MCP    http.Handler
	Logger *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	svc    QueryService
	logger *slog.Logger
}

// NewServer creates an HTTP router with middleware.
func NewServer(svc QueryService, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv := &Server{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(srv.logRequests)

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}

		r.Route("/api", func(r chi.Router) {
			r.Get("/rules/{namespace}", srv.handleListRules)
			r.Get("/filters/{namespace}", srv.handleListFilters)
			r.Get("/filters/{namespace}/{name}", srv.handleGetFilter)
			r.Put("/filters/{namespace}/{name}", srv.handleDefineFilter)
			r.Delete("/filters/{namespace}/{name}", srv.handleDeleteFilter)
			r.Post("/apply/{namespace}", srv.handleApply)
			r.Post("/reload", srv.handleReload)
		})

		if opts.MCP != nil {
			r.Handle("/mcp", opts.MCP)
			r.Handle("/mcp/*", opts.MCP)
		}
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.svc.ListRules(chi.URLParam(r, "namespace"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (s *Server) handleListFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := s.svc.ListFilters(chi.URLParam(r, "namespace"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filters": filters})
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.GetFilter(chi.URLParam(r, "namespace"), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDefineFilter(w http.ResponseWriter, r *http.Request) {
	var def filterlist.Definition
	if err := decodeBody(w, r, &def); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	def.Name = chi.URLParam(r, "name")

	detail, err := s.svc.Define(r.Context(), query.DefineRequest{
		Namespace:  chi.URLParam(r, "namespace"),
		Definition: def,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteFilter(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "namespace"), chi.URLParam(r, "name")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type applyBody struct {
	Filter     string                 `json:"filter"`
	Definition *filterlist.Definition `json:"definition"`
	Params     []string               `json:"params"`
	Handles    []string               `json:"handles"`
	Visibility *query.Visibility      `json:"visibility"`
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var body applyBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	// A disconnecting client cancels the evaluation through the request
	// context.
	res, err := s.svc.Apply(r.Context(), query.ApplyRequest{
		Namespace:  chi.URLParam(r, "namespace"),
		Filter:     body.Filter,
		Definition: body.Definition,
		Params:     body.Params,
		Handles:    body.Handles,
		Visibility: body.Visibility,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	diags, err := s.svc.Reload(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if diags == nil {
		diags = []filterlist.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"diagnostics": diags})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// fail maps a service error to a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, filter.ErrParamCount):
		status, code = http.StatusBadRequest, "PARAM_COUNT"
	case errors.Is(err, filter.ErrUnknownRule):
		status, code = http.StatusBadRequest, "UNKNOWN_RULE"
	case errors.Is(err, query.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, query.ErrFilterNotFound):
		status, code = http.StatusNotFound, "FILTER_NOT_FOUND"
	case errors.Is(err, query.ErrSystemFilter), errors.Is(err, filterlist.ErrReadOnly):
		status, code = http.StatusForbidden, "READ_ONLY"
	case errors.Is(err, filter.ErrCyclicReference):
		status, code = http.StatusUnprocessableEntity, "CYCLIC_REFERENCE"
	case errors.Is(err, filter.ErrAborted):
		status, code = http.StatusServiceUnavailable, "ABORTED"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeError(w, status, code, err.Error())
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
