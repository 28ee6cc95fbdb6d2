package workbench

import (
	"net/http"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/forecast"

	"github.com/go-chi/chi/v5"
)

type addStreamRequest struct {
	Name           string               `json:"name"`
	Classification string               `json:"classification"`
	Seed           *assumption.SeedSpec `json:"seed"`
}

type addStreamResponse struct {
	ID     string     `json:"id"`
	Stream streamView `json:"stream"`
}

// withStreams runs fn on the builder named in the URL.
func (h *Handler) withStreams(r *http.Request, fn func(wb *assumption.Workbench, mgr *assumption.StreamManager) error) error {
	b, err := builderParam(r)
	if err != nil {
		return err
	}
	_, err = h.withSession(r, func(wb *assumption.Workbench) error {
		mgr, err := wb.Streams(b)
		if err != nil {
			return err
		}
		return fn(wb, mgr)
	})
	return err
}

// HandleAddStream handles POST /api/sessions/{sessionID}/streams/{builder}
func (h *Handler) HandleAddStream(w http.ResponseWriter, r *http.Request) {
	var req addStreamRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	class, err := assumption.ParseClassification(req.Classification)
	if err != nil {
		h.writeError(w, badRequest("%v", err))
		return
	}
	var seed assumption.Seed
	if req.Seed != nil {
		if seed, err = req.Seed.Seed(); err != nil {
			h.writeError(w, badRequest("%v", err))
			return
		}
	}

	var resp addStreamResponse
	err = h.withStreams(r, func(wb *assumption.Workbench, mgr *assumption.StreamManager) error {
		id, err := mgr.AddStream(req.Name, class, seed)
		if err != nil {
			return err
		}
		s, _ := mgr.Stream(id)
		resp = addStreamResponse{ID: id, Stream: viewStream(s)}
		wb.Touch()
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

type renameStreamRequest struct {
	Name *string `json:"name"`
}

// HandleRenameStream handles PUT /api/sessions/{sessionID}/streams/{builder}/{streamID}
func (h *Handler) HandleRenameStream(w http.ResponseWriter, r *http.Request) {
	var req renameStreamRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Name == nil {
		h.writeError(w, badRequest("name is required"))
		return
	}
	id := chi.URLParam(r, "streamID")

	var view streamView
	err := h.withStreams(r, func(wb *assumption.Workbench, mgr *assumption.StreamManager) error {
		if err := mgr.Rename(id, *req.Name); err != nil {
			return err
		}
		s, _ := mgr.Stream(id)
		view = viewStream(s)
		wb.Touch()
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// HandleRemoveStream handles DELETE /api/sessions/{sessionID}/streams/{builder}/{streamID}
// Removing a stream that is already gone answers 204 as well.
func (h *Handler) HandleRemoveStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "streamID")
	err := h.withStreams(r, func(wb *assumption.Workbench, mgr *assumption.StreamManager) error {
		mgr.RemoveStream(id)
		wb.Touch()
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setMonthRequest struct {
	Value   *forecast.Number `json:"value"`
	Forward bool             `json:"forward"`
}

// HandleSetMonth handles PUT /api/sessions/{sessionID}/streams/{builder}/{streamID}/months/{month}
// With forward set, every later month takes the same value.
func (h *Handler) HandleSetMonth(w http.ResponseWriter, r *http.Request) {
	month, err := intParam(r, "month")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req setMonthRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Value == nil {
		h.writeError(w, badRequest("value is required"))
		return
	}
	id := chi.URLParam(r, "streamID")

	var view streamView
	err = h.withStreams(r, func(wb *assumption.Workbench, mgr *assumption.StreamManager) error {
		var err error
		if req.Forward {
			err = mgr.ApplyForward(id, month, req.Value.Float())
		} else {
			err = mgr.SetMonthValue(id, month, req.Value.Float())
		}
		if err != nil {
			return err
		}
		s, _ := mgr.Stream(id)
		view = viewStream(s)
		wb.Touch()
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// HandleStreamTotals handles GET /api/sessions/{sessionID}/streams/{builder}/totals
func (h *Handler) HandleStreamTotals(w http.ResponseWriter, r *http.Request) {
	var view totalsView
	err := h.withStreams(r, func(_ *assumption.Workbench, mgr *assumption.StreamManager) error {
		view = viewTotals(mgr.Builder(), mgr.AnnualTotals())
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}
