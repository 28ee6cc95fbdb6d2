// Package workbench serves the assumption workbench over HTTP.
package workbench

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/config"
	"forecast_workbench/pkg/core/forecast"
	"forecast_workbench/pkg/core/form"
	"forecast_workbench/pkg/core/session"
	"forecast_workbench/pkg/core/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds request bodies; a long monthly horizon with many streams stays well below it.
const maxBodyBytes = 4 << 20

// Handler holds dependencies for workbench endpoints
type Handler struct {
	sessions  *session.Manager
	scenarios *store.ScenarioStore
	cfg       config.WorkbenchConfig
	log       zerolog.Logger
}

// NewHandler creates a new workbench handler. scenarios may be nil, which
// disables the scenario endpoints.
func NewHandler(sessions *session.Manager, scenarios *store.ScenarioStore, cfg config.WorkbenchConfig, log zerolog.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		scenarios: scenarios,
		cfg:       cfg,
		log:       log.With().Str("component", "workbench_api").Logger(),
	}
}

// Routes registers the endpoints under the router it is mounted on (normally /api).
func (h *Handler) Routes(r chi.Router) {
	r.Post("/payload", h.HandleStatelessPayload)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.HandleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.HandleGetSession)
			r.Delete("/", h.HandleDeleteSession)
			r.Put("/horizon", h.HandleSetHorizon)
			r.Put("/scalars", h.HandleSetScalars)

			r.Route("/series/{key}", func(r chi.Router) {
				r.Put("/default", h.HandleSetDefault)
				r.Get("/overwrite-check", h.HandleOverwriteCheck)
				r.Post("/apply-default", h.HandleApplyDefault)
				r.Put("/values/{index}", h.HandleSetValue)
				r.Delete("/values/{index}", h.HandleResetValue)
			})

			r.Route("/streams/{builder}", func(r chi.Router) {
				r.Post("/", h.HandleAddStream)
				r.Get("/totals", h.HandleStreamTotals)
				r.Put("/{streamID}", h.HandleRenameStream)
				r.Delete("/{streamID}", h.HandleRemoveStream)
				r.Put("/{streamID}/months/{month}", h.HandleSetMonth)
			})

			r.Get("/payload", h.HandleGetPayload)
			r.Post("/forecast", h.HandleForecast)
			r.Post("/export", h.HandleExport)
			r.Post("/scenarios/{name}", h.HandleSaveScenario)
		})
	})

	r.Route("/scenarios", func(r chi.Router) {
		r.Get("/", h.HandleListScenarios)
		r.Post("/{name}/load", h.HandleLoadScenario)
		r.Delete("/{name}", h.HandleDeleteScenario)
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// requestError is a malformed request.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// notFound marks an unknown entity named in the URL.
type notFoundError struct{ msg string }

func (e *notFoundError) Error() string { return e.msg }

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

func builderParam(r *http.Request) (assumption.Builder, error) {
	b, err := assumption.ParseBuilder(chi.URLParam(r, "builder"))
	if err != nil {
		return "", &notFoundError{msg: err.Error()}
	}
	return b, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error         string `json:"error"`
	Field         string `json:"field,omitempty"`
	BackendStatus int    `json:"backend_status,omitempty"`
}

// writeError maps an error to its status code:
// 400 invalid input or malformed request, 404 unknown entity,
// 422 invalid horizon or index, 502 backend failure.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		status = http.StatusInternalServerError
		resp   = errorResponse{Error: err.Error()}
		reqErr *requestError
		nfErr  *notFoundError
		apiErr *forecast.APIError
	)

	switch {
	case errors.As(err, &reqErr), errors.Is(err, form.ErrInvalidForm):
		status = http.StatusBadRequest
	case errors.Is(err, assumption.ErrInvalidInputValue):
		status = http.StatusBadRequest
		resp.Field, _ = assumption.FieldOf(err)
	case errors.As(err, &nfErr),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, assumption.ErrUnknownSeries),
		errors.Is(err, assumption.ErrUnknownStream),
		errors.Is(err, store.ErrScenarioNotFound):
		status = http.StatusNotFound
	case errors.Is(err, assumption.ErrInvalidHorizon),
		errors.Is(err, assumption.ErrIndexOutOfRange):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
		resp.Error = apiErr.Message
		resp.BackendStatus = apiErr.Status
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	h.writeJSON(w, status, resp)
}

// withSession runs fn on the session named in the URL under its lock.
func (h *Handler) withSession(r *http.Request, fn func(wb *assumption.Workbench) error) (*session.Session, error) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		return nil, err
	}
	return s, s.Do(fn)
}
