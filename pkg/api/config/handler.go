// Package config serves the form metadata a client needs to draw the workbench.
package config

import (
	"encoding/json"
	"net/http"

	"forecast_workbench/pkg/core/assumption"
	coreconfig "forecast_workbench/pkg/core/config"
)

type SeriesInfo struct {
	assumption.SeriesSpec
	Default float64 `json:"default"`
}

type Response struct {
	Series          []SeriesInfo       `json:"series"`
	DefaultHorizon  int                `json:"default_horizon"`
	DefaultMode     string             `json:"default_mode"`
	HorizonChoices  []int              `json:"horizon_choices"`
	Modes           []string           `json:"modes"`
	Builders        []string           `json:"builders"`
	Classifications []string           `json:"classifications"`
	Scalars         assumption.Scalars `json:"scalars"`
	Units           map[string]string  `json:"units"`
	Storage         string             `json:"storage,omitempty"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	cfg     coreconfig.WorkbenchConfig
	storage string
}

// NewHandler creates a new config handler. storage names the scenario backend
// ("postgres", "file", or empty when scenarios are disabled).
func NewHandler(cfg coreconfig.WorkbenchConfig, storage string) *Handler {
	return &Handler{cfg: cfg, storage: storage}
}

// HandleConfig handles GET /api/config
func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		DefaultHorizon: h.cfg.DefaultHorizon,
		DefaultMode:    h.cfg.DefaultMode,
		HorizonChoices: h.cfg.HorizonChoices,
		Modes:          []string{string(assumption.ModeAnnual), string(assumption.ModeMonthly)},
		Classifications: []string{
			string(assumption.ClassRevenue),
			string(assumption.ClassCOGS),
			string(assumption.ClassOpEx),
		},
		Scalars: h.cfg.Scalars,
		Units:   make(map[string]string),
		Storage: h.storage,
	}
	for _, spec := range assumption.StandardSeries() {
		def, ok := h.cfg.Defaults[spec.Key]
		if !ok {
			def = assumption.StandardDefaults()[spec.Key]
		}
		resp.Series = append(resp.Series, SeriesInfo{SeriesSpec: spec, Default: def})
		resp.Units[spec.Key] = string(spec.Unit)
	}
	for _, b := range assumption.Builders() {
		resp.Builders = append(resp.Builders, string(b))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
