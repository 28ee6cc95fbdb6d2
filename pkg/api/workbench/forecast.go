package workbench

import (
	"fmt"
	"net/http"
	"strconv"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/forecast"
	"forecast_workbench/pkg/core/form"
	"forecast_workbench/pkg/core/report"

	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HandleGetPayload handles GET /api/sessions/{sessionID}/payload
// Returns exactly what a forecast request would send.
func (h *Handler) HandleGetPayload(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	p, _, err := s.Payload()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

type forecastResponse struct {
	Payload    *assumption.Payload          `json:"payload"`
	Periods    assumption.Periods           `json:"periods"`
	Labels     []string                     `json:"labels"`
	Lines      map[string][]forecast.Number `json:"lines"`
	Statements []report.Rendered            `json:"statements"`
	Chart      report.Chart                 `json:"chart"`
}

// HandleForecast handles POST /api/sessions/{sessionID}/forecast
func (h *Handler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	sub, err := h.sessions.Submit(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	fallback := sub.Periods.Labels()
	rendered, err := report.RenderAll(report.Build(report.WithInputs(sub.Result, sub.Payload), fallback))
	if err != nil {
		h.writeError(w, fmt.Errorf("failed to render statements: %w", err))
		return
	}

	h.writeJSON(w, http.StatusOK, forecastResponse{
		Payload:    sub.Payload,
		Periods:    sub.Periods,
		Labels:     sub.Result.Labels,
		Lines:      sub.Result.Lines,
		Statements: rendered,
		Chart:      report.KPIChart(sub.Result, fallback),
	})
}

// HandleExport handles POST /api/sessions/{sessionID}/export
// The spreadsheet bytes are passed through unchanged.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	file, err := h.sessions.Export(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	ct := file.ContentType
	if ct == "" {
		ct = xlsxContentType
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		h.log.Warn().Err(err).Msg("Failed to write export")
	}
}

// =============================================================================
// STATELESS PAYLOAD
// =============================================================================

// HandleStatelessPayload handles POST /api/payload
// Builds and validates a payload from a whole form without creating a session.
func (h *Handler) HandleStatelessPayload(w http.ResponseWriter, r *http.Request) {
	req := form.Form{Horizon: h.cfg.DefaultHorizon, Mode: h.cfg.DefaultMode}
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	wb, err := req.Build(h.cfg.Defaults, h.cfg.Scalars)
	if err != nil {
		h.writeError(w, err)
		return
	}
	p, err := wb.Payload()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}
