package workbench

import (
	"errors"
	"net/http"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/store"

	"github.com/go-chi/chi/v5"
)

var errNoScenarioStore = errors.New("scenario storage is not configured")

// scenarioName reads and validates the name in the URL.
func (h *Handler) scenarioName(r *http.Request) (string, error) {
	if h.scenarios == nil {
		return "", errNoScenarioStore
	}
	name := chi.URLParam(r, "name")
	if err := store.ValidateName(name); err != nil {
		return "", badRequest("%v", err)
	}
	return name, nil
}

func (h *Handler) writeScenarioError(w http.ResponseWriter, err error) {
	if errors.Is(err, errNoScenarioStore) {
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	h.writeError(w, err)
}

// HandleSaveScenario handles POST /api/sessions/{sessionID}/scenarios/{name}
func (h *Handler) HandleSaveScenario(w http.ResponseWriter, r *http.Request) {
	name, err := h.scenarioName(r)
	if err != nil {
		h.writeScenarioError(w, err)
		return
	}

	var snap assumption.Snapshot
	if _, err := h.withSession(r, func(wb *assumption.Workbench) error {
		snap = wb.Snapshot()
		return nil
	}); err != nil {
		h.writeError(w, err)
		return
	}

	sc, err := h.scenarios.Save(r.Context(), name, snap)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, store.ScenarioInfo{Name: sc.Name, Horizon: sc.Horizon, Mode: sc.Mode, SavedAt: sc.SavedAt})
}

// HandleListScenarios handles GET /api/scenarios
func (h *Handler) HandleListScenarios(w http.ResponseWriter, r *http.Request) {
	if h.scenarios == nil {
		h.writeScenarioError(w, errNoScenarioStore)
		return
	}
	list, err := h.scenarios.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []store.ScenarioInfo{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"backend":   h.scenarios.Backend(),
		"scenarios": list,
	})
}

// HandleLoadScenario handles POST /api/scenarios/{name}/load
// The scenario becomes a new session; saved scenarios are never edited in place.
func (h *Handler) HandleLoadScenario(w http.ResponseWriter, r *http.Request) {
	name, err := h.scenarioName(r)
	if err != nil {
		h.writeScenarioError(w, err)
		return
	}
	sc, err := h.scenarios.Load(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	wb, err := assumption.Restore(sc.Snapshot)
	if err != nil {
		h.writeError(w, err)
		return
	}

	s := h.sessions.Adopt(wb)
	var view sessionView
	s.Do(func(wb *assumption.Workbench) error {
		view = viewSession(s.ID, wb)
		return nil
	})
	h.log.Info().Str("scenario", name).Str("session_id", s.ID).Msg("Scenario loaded")
	h.writeJSON(w, http.StatusCreated, view)
}

// HandleDeleteScenario handles DELETE /api/scenarios/{name}
func (h *Handler) HandleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	name, err := h.scenarioName(r)
	if err != nil {
		h.writeScenarioError(w, err)
		return
	}
	existed, err := h.scenarios.Delete(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !existed {
		h.writeError(w, &notFoundError{msg: "scenario not found: " + name})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
