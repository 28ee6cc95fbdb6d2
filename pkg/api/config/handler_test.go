package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"forecast_workbench/pkg/core/assumption"
	coreconfig "forecast_workbench/pkg/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleConfig(t *testing.T) {
	cfg := coreconfig.Default().Workbench
	cfg.Defaults[assumption.KeyCOGSPct] = 55

	rec := httptest.NewRecorder()
	NewHandler(cfg, "file").HandleConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Series, len(assumption.StandardSeries()))
	assert.Equal(t, "cogs_pct", resp.Series[1].Key)
	assert.Equal(t, 55.0, resp.Series[1].Default)
	assert.Equal(t, "percent", resp.Units["revenue_growth"])
	assert.Equal(t, []int{3, 5, 10}, resp.HorizonChoices)
	assert.Equal(t, []string{"annual", "monthly"}, resp.Modes)
	assert.Equal(t, []string{"revenue", "cogs", "opex"}, resp.Builders)
	assert.Equal(t, 25.0, resp.Scalars.TaxRate)
	assert.Equal(t, "file", resp.Storage)
}
