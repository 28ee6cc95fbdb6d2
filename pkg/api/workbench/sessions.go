package workbench

import (
	"net/http"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/forecast"
	"forecast_workbench/pkg/core/form"

	"github.com/go-chi/chi/v5"
)

// horizonRequest selects a horizon. Zero values fall back to the configured defaults
// when creating a session; SetHorizon requires both.
type horizonRequest struct {
	Horizon int    `json:"horizon"`
	Mode    string `json:"mode"`
}

// HandleCreateSession handles POST /api/sessions
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	req := horizonRequest{Horizon: h.cfg.DefaultHorizon, Mode: h.cfg.DefaultMode}
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			h.writeError(w, err)
			return
		}
		if req.Horizon == 0 {
			req.Horizon = h.cfg.DefaultHorizon
		}
	}
	mode, err := assumption.ParsePeriodMode(req.Mode)
	if err != nil {
		h.writeError(w, err)
		return
	}

	s, err := h.sessions.Create(req.Horizon, mode)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var view sessionView
	s.Do(func(wb *assumption.Workbench) error {
		view = viewSession(s.ID, wb)
		return nil
	})
	h.log.Info().Str("session_id", s.ID).Int("horizon", req.Horizon).Str("mode", string(mode)).Msg("Session started")
	h.writeJSON(w, http.StatusCreated, view)
}

// HandleGetSession handles GET /api/sessions/{sessionID}
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	h.respondSession(w, r, func(*assumption.Workbench) error { return nil })
}

// HandleDeleteSession handles DELETE /api/sessions/{sessionID}
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !h.sessions.Delete(id) {
		h.writeError(w, &notFoundError{msg: "session not found: " + id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetHorizon handles PUT /api/sessions/{sessionID}/horizon
func (h *Handler) HandleSetHorizon(w http.ResponseWriter, r *http.Request) {
	var req horizonRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	mode, err := assumption.ParsePeriodMode(req.Mode)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.respondSession(w, r, func(wb *assumption.Workbench) error {
		return wb.SetHorizon(req.Horizon, mode)
	})
}

// HandleSetScalars handles PUT /api/sessions/{sessionID}/scalars
func (h *Handler) HandleSetScalars(w http.ResponseWriter, r *http.Request) {
	var req form.ScalarsPatch
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSession(w, r, func(wb *assumption.Workbench) error {
		req.Apply(wb)
		return nil
	})
}

// =============================================================================
// SERIES
// =============================================================================

type valueRequest struct {
	Value *forecast.Number `json:"value"`
}

func decodeValue(w http.ResponseWriter, r *http.Request) (float64, error) {
	var req valueRequest
	if err := decodeBody(w, r, &req); err != nil {
		return 0, err
	}
	if req.Value == nil {
		return 0, badRequest("value is required")
	}
	return req.Value.Float(), nil
}

// respondSeries runs fn on the series named in the URL and answers with its view.
func (h *Handler) respondSeries(w http.ResponseWriter, r *http.Request, fn func(st *assumption.Store, key string) error) {
	key := chi.URLParam(r, "key")
	var view seriesView
	_, err := h.withSession(r, func(wb *assumption.Workbench) error {
		if fn != nil {
			if err := fn(wb.Store(), key); err != nil {
				return err
			}
			wb.Touch()
		}
		var err error
		view, err = viewSeries(wb.Store(), key)
		return err
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// HandleSetDefault handles PUT /api/sessions/{sessionID}/series/{key}/default
func (h *Handler) HandleSetDefault(w http.ResponseWriter, r *http.Request) {
	v, err := decodeValue(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSeries(w, r, func(st *assumption.Store, key string) error {
		return st.SetDefault(key, v)
	})
}

// HandleOverwriteCheck handles GET /api/sessions/{sessionID}/series/{key}/overwrite-check
func (h *Handler) HandleOverwriteCheck(w http.ResponseWriter, r *http.Request) {
	var would bool
	_, err := h.withSession(r, func(wb *assumption.Workbench) error {
		var err error
		would, err = wb.Store().WouldOverwriteOverrides(chi.URLParam(r, "key"))
		return err
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"would_overwrite": would})
}

// HandleApplyDefault handles POST /api/sessions/{sessionID}/series/{key}/apply-default
func (h *Handler) HandleApplyDefault(w http.ResponseWriter, r *http.Request) {
	h.respondSeries(w, r, func(st *assumption.Store, key string) error {
		return st.ApplyDefaultToAll(key)
	})
}

// HandleSetValue handles PUT /api/sessions/{sessionID}/series/{key}/values/{index}
func (h *Handler) HandleSetValue(w http.ResponseWriter, r *http.Request) {
	index, err := intParam(r, "index")
	if err != nil {
		h.writeError(w, err)
		return
	}
	v, err := decodeValue(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSeries(w, r, func(st *assumption.Store, key string) error {
		return st.SetOverride(key, index, v)
	})
}

// HandleResetValue handles DELETE /api/sessions/{sessionID}/series/{key}/values/{index}
func (h *Handler) HandleResetValue(w http.ResponseWriter, r *http.Request) {
	index, err := intParam(r, "index")
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondSeries(w, r, func(st *assumption.Store, key string) error {
		return st.ResetOverride(key, index)
	})
}

// respondSession runs fn and answers with the whole session view.
func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request, fn func(wb *assumption.Workbench) error) {
	var view sessionView
	_, err := h.withSession(r, func(wb *assumption.Workbench) error {
		if err := fn(wb); err != nil {
			return err
		}
		view = viewSession(chi.URLParam(r, "sessionID"), wb)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}
