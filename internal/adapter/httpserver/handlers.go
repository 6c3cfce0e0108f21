package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/valorize-app/valorize/internal/config"
	"github.com/valorize-app/valorize/internal/domain"
	"github.com/valorize-app/valorize/internal/usecase"
)

// accountHeader carries the calling tenant. Authentication proper lives at
// the gateway; the API only scopes data access by this id.
const accountHeader = "X-Account-Id"

// SubmitService accepts a questionnaire and returns the new record id.
type SubmitService interface {
	Submit(ctx domain.Context, accountID string, in domain.Inputs) (string, error)
}

// StatusService answers record status queries.
type StatusService interface {
	Status(ctx domain.Context, id, accountID string) (usecase.StatusView, error)
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Submit     SubmitService
	Status     StatusService
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	QueueCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, submit SubmitService, status StatusService, dbCheck, redisCheck, queueCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Submit: submit, Status: status, DBCheck: dbCheck, RedisCheck: redisCheck, QueueCheck: queueCheck}
}

// SubmitHandler accepts a valuation questionnaire and enqueues processing.
func (s *Server) SubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a := r.Header.Get("Accept"); a != "" && a != "*/*" && !strings.Contains(a, "application/json") {
			writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{
				Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]any{"accept": a},
			}})
			return
		}
		accountID := r.Header.Get(accountHeader)
		if accountID == "" {
			writeError(w, r, fmt.Errorf("%w: %s header required", domain.ErrInvalidArgument, accountHeader), nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req struct {
			Inputs domain.Inputs `json:"inputs"`
		}
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		id, err := s.Submit.Submit(r.Context(), accountID, req.Inputs)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message":   "Relatório em processamento",
			"report_id": id,
		})
	}
}

// StatusHandler answers the polling endpoint for one record.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := r.Header.Get(accountHeader)
		if accountID == "" {
			writeError(w, r, fmt.Errorf("%w: %s header required", domain.ErrInvalidArgument, accountHeader), nil)
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id required", domain.ErrInvalidArgument), nil)
			return
		}
		view, err := s.Status.Status(r.Context(), id, accountID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// ReadyzHandler reports readiness of the backing services.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		name string
		fn   func(ctx context.Context) error
	}
	return func(w http.ResponseWriter, r *http.Request) {
		checks := []check{
			{"db", s.DBCheck},
			{"redis", s.RedisCheck},
			{"queue", s.QueueCheck},
		}
		status := http.StatusOK
		detail := map[string]string{}
		for _, c := range checks {
			if c.fn == nil {
				detail[c.name] = "skipped"
				continue
			}
			if err := c.fn(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				detail[c.name] = err.Error()
			} else {
				detail[c.name] = "ok"
			}
		}
		writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": detail})
	}
}
