package workbench

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/config"
	"forecast_workbench/pkg/core/forecast"
	"forecast_workbench/pkg/core/session"
	"forecast_workbench/pkg/core/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	err  error
	sent *assumption.Payload
}

func (b *stubBackend) Forecast(ctx context.Context, p *assumption.Payload) (*forecast.Result, error) {
	b.sent = p
	if b.err != nil {
		return nil, b.err
	}
	return &forecast.Result{Lines: map[string][]forecast.Number{
		"Revenue":    {100000, 110000, 121000, 133100},
		"Net Income": {0, 5000, 6000, 7000},
	}}, nil
}

func (b *stubBackend) Export(ctx context.Context, p *assumption.Payload) (*forecast.ExportFile, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &forecast.ExportFile{Data: []byte("PK\x03\x04"), Filename: "financial_forecast.xlsx"}, nil
}

type testEnv struct {
	router  http.Handler
	backend *stubBackend
}

func newTestEnv(t *testing.T, withScenarios bool) *testEnv {
	t.Helper()
	cfg := config.Default().Workbench
	backend := &stubBackend{}
	sessions := session.NewManager(session.Options{
		Defaults: cfg.Defaults,
		Scalars:  cfg.Scalars,
		Backend:  backend,
		Log:      zerolog.Nop(),
	})
	var scenarios *store.ScenarioStore
	if withScenarios {
		scenarios = store.NewScenarioStore(nil, t.TempDir(), zerolog.Nop())
	}

	r := chi.NewRouter()
	r.Route("/api", NewHandler(sessions, scenarios, cfg, zerolog.Nop()).Routes)
	return &testEnv{router: r, backend: backend}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func (e *testEnv) createSession(t *testing.T, body interface{}) sessionView {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var view sessionView
	decode(t, rec, &view)
	return view
}

func TestCreateSession_Defaults(t *testing.T) {
	env := newTestEnv(t, false)
	view := env.createSession(t, nil)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, 3, view.Periods.HorizonValue)
	assert.Equal(t, []string{"Year 0", "Year 1", "Year 2", "Year 3"}, view.Labels)
	require.Len(t, view.Series, len(assumption.StandardSeries()))
	assert.Equal(t, assumption.KeyRevenueGrowth, view.Series[0].Key)
	assert.Len(t, view.Series[0].Values, 3)
	assert.Contains(t, view.Streams, "revenue")
}

func TestCreateSession_Monthly(t *testing.T) {
	env := newTestEnv(t, false)
	view := env.createSession(t, map[string]interface{}{"horizon": 18, "mode": "monthly"})

	assert.Equal(t, 2, view.Periods.InputBuckets)
	assert.Equal(t, 18, view.Periods.HorizonMonths)
	assert.Equal(t, "Month 18", view.Labels[18])
}

func TestCreateSession_InvalidHorizon(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodPost, "/api/sessions", map[string]interface{}{"horizon": -1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sessions", map[string]interface{}{"horizon": 3, "mode": "weekly"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSession_NotFound(t *testing.T) {
	env := newTestEnv(t, false)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/sessions/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/sessions/missing", nil).Code)
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t, false)
	view := env.createSession(t, nil)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/sessions/"+view.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/sessions/"+view.ID, nil).Code)
}

func TestSeriesEditing(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createSession(t, nil).ID
	base := "/api/sessions/" + id + "/series/revenue_growth"

	rec := env.do(t, http.MethodPut, base+"/values/1", map[string]float64{"value": 25})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sv seriesView
	decode(t, rec, &sv)
	assert.Equal(t, []forecast.Number{10, 25, 10}, sv.Values)
	assert.True(t, sv.WouldOverwrite)

	var check map[string]bool
	decode(t, env.do(t, http.MethodGet, base+"/overwrite-check", nil), &check)
	assert.True(t, check["would_overwrite"])

	rec = env.do(t, http.MethodPut, base+"/default", map[string]float64{"value": 12})
	decode(t, rec, &sv)
	assert.Equal(t, []forecast.Number{10, 25, 10}, sv.Values, "new default must not touch existing entries")

	rec = env.do(t, http.MethodPost, base+"/apply-default", nil)
	decode(t, rec, &sv)
	assert.Equal(t, []forecast.Number{12, 12, 12}, sv.Values)
	assert.False(t, sv.WouldOverwrite)

	env.do(t, http.MethodPut, base+"/values/0", map[string]float64{"value": 1})
	rec = env.do(t, http.MethodDelete, base+"/values/0", nil)
	decode(t, rec, &sv)
	assert.Equal(t, forecast.Number(12), sv.Values[0])
}

func TestSeriesEditing_Errors(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createSession(t, nil).ID
	base := "/api/sessions/" + id + "/series/"

	rec := env.do(t, http.MethodPut, base+"revenue_growth/values/3", map[string]float64{"value": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPut, base+"revenue_growth/values/x", map[string]float64{"value": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, base+"no_such_series/default", map[string]float64{"value": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, base+"revenue_growth/default", `{"value": null}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, base+"revenue_growth/default", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetHorizon_ResizesAndRejects(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createSession(t, nil).ID
	env.do(t, http.MethodPut, "/api/sessions/"+id+"/series/capex/values/2", map[string]float64{"value": 9000})

	rec := env.do(t, http.MethodPut, "/api/sessions/"+id+"/horizon", map[string]interface{}{"horizon": 5, "mode": "annual"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view sessionView
	decode(t, rec, &view)
	assert.Equal(t, []forecast.Number{5000, 5000, 9000, 5000, 5000}, view.Series[3].Values)

	rec = env.do(t, http.MethodPut, "/api/sessions/"+id+"/horizon", map[string]interface{}{"horizon": 0, "mode": "annual"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	decode(t, env.do(t, http.MethodGet, "/api/sessions/"+id, nil), &view)
	assert.Equal(t, 5, view.Periods.HorizonValue, "rejected horizon must leave the session unchanged")
}

func TestScalars_NonFiniteRejectedAtSerialization(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createSession(t, nil).ID

	rec := env.do(t, http.MethodPut, "/api/sessions/"+id+"/scalars", `{"initial_cash": "Infinity", "tax_rate": 30}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view sessionView
	decode(t, rec, &view)
	assert.Equal(t, forecast.Number(30), view.Scalars.TaxRate)
	assert.Equal(t, forecast.Number(100000), view.Scalars.InitialRevenue)

	rec = env.do(t, http.MethodGet, "/api/sessions/"+id+"/payload", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "initial_cash", resp.Field)

	rec = env.do(t, http.MethodPost, "/api/sessions/"+id+"/forecast", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, env.backend.sent, "invalid input must not reach the backend")
}

func TestGetPayload(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createSession(t, nil).ID

	rec := env.do(t, http.MethodGet, "/api/sessions/"+id+"/payload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)

	assert.Equal(t, float64(3), body["years"])
	assert.Equal(t, 0.25, body["tax_rate"])
	assert.Equal(t, []interface{}{0.1, 0.1, 0.1}, body["revenue_growth_rates"])
	assert.Equal(t, []interface{}{}, body["opex_streams"])
}

func TestStreams(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createSession(t, nil).ID
	base := "/api/sessions/" + id + "/streams/revenue"

	rec := env.do(t, http.MethodPost, base, map[string]interface{}{
		"name":           "Subscriptions",
		"classification": "revenue",
		"seed":           map[string]interface{}{"kind": "flat", "value": 100},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added addStreamResponse
	decode(t, rec, &added)
	assert.Equal(t, "Revenue", added.Stream.Classification)
	assert.Len(t, added.Stream.Values, 36)

	rec = env.do(t, http.MethodPut, base+"/"+added.ID+"/months/12", map[string]interface{}{"value": 200, "forward": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var totals totalsView
	decode(t, env.do(t, http.MethodGet, base+"/totals", nil), &totals)
	assert.Equal(t, 3, totals.Years)
	assert.Equal(t, []forecast.Number{1200, 2400, 2400}, totals.Aggregate)
	assert.Equal(t, []forecast.Number{1200, 2400, 2400}, totals.ByClassification["Revenue"])

	rec = env.do(t, http.MethodPut, base+"/"+added.ID, map[string]string{"name": "Licences"})
	var sv streamView
	decode(t, rec, &sv)
	assert.Equal(t, "Licences", sv.Name)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, base+"/"+added.ID, nil).Code)
}

func TestRemoveStream_Idempotent(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createSession(t, nil).ID
	base := "/api/sessions/" + id + "/streams/opex"

	rec := env.do(t, http.MethodPost, base, map[string]string{"name": "Rent"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added addStreamResponse
	decode(t, rec, &added)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, base+"/"+added.ID, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, base+"/"+added.ID, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, base+"/never-added", nil).Code)

	var view sessionView
	decode(t, env.do(t, http.MethodGet, "/api/sessions/"+id, nil), &view)
	assert.Empty(t, view.Streams["opex"])

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/sessions/"+id+"/streams/capex/"+added.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/sessions/missing/streams/opex/"+added.ID, nil).Code)
}

func TestStreams_Errors(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createSession(t, nil).ID

	rec := env.do(t, http.MethodPost, "/api/sessions/"+id+"/streams/capex", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sessions/"+id+"/streams/cogs", map[string]string{"classification": "assets"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sessions/"+id+"/streams/cogs", map[string]interface{}{
		"seed": map[string]interface{}{"kind": "growth", "value": 1200, "growth_pct": "NaN"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/sessions/"+id+"/streams/cogs/nope/months/0", map[string]float64{"value": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestForecast(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createSession(t, nil).ID

	rec := env.do(t, http.MethodPost, "/api/sessions/"+id+"/forecast", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Labels     []string `json:"labels"`
		Statements []struct {
			Kind    string   `json:"kind"`
			Columns []string `json:"columns"`
			HTML    string   `json:"html"`
		} `json:"statements"`
		Chart struct {
			Labels []string `json:"labels"`
		} `json:"chart"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, []string{"Year 0", "Year 1", "Year 2", "Year 3"}, resp.Labels)
	require.Len(t, resp.Statements, 3)
	assert.Equal(t, "income_statement", resp.Statements[0].Kind)
	assert.Contains(t, resp.Statements[0].HTML, "<table>")
	assert.Equal(t, "cash_flow", resp.Statements[2].Kind)
	assert.Contains(t, resp.Statements[2].HTML, "Cash Flow from Investing (CapEx)")
	assert.Equal(t, []string{"Year 1", "Year 2", "Year 3"}, resp.Chart.Labels)
	require.NotNil(t, env.backend.sent)
	assert.Equal(t, 3, env.backend.sent.Years)
}

func TestForecast_BackendError(t *testing.T) {
	env := newTestEnv(t, false)
	env.backend.err = &forecast.APIError{Status: 500, Message: "division by zero"}
	id := env.createSession(t, nil).ID

	rec := env.do(t, http.MethodPost, "/api/sessions/"+id+"/forecast", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp errorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "division by zero", resp.Error)
	assert.Equal(t, 500, resp.BackendStatus)
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, false)
	id := env.createSession(t, nil).ID

	rec := env.do(t, http.MethodPost, "/api/sessions/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="financial_forecast.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, []byte("PK\x03\x04"), rec.Body.Bytes())
}

func TestStatelessPayload(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/payload", `{
		"horizon": 24, "mode": "monthly",
		"defaults": {"cogs_pct": 50},
		"values": {"revenue_growth": [null, 20]},
		"scalars": {"currency_symbol": "€"},
		"streams": {"opex": [{"name": "Rent", "values": [10, 20]}]}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "monthly", body["period_mode"])
	assert.Equal(t, float64(24), body["years"])
	assert.Equal(t, "€", body["currency_symbol"])
	assert.Equal(t, []interface{}{0.1, 0.2}, body["revenue_growth_rates"])
	assert.Equal(t, []interface{}{0.5, 0.5}, body["cogs_pct_rates"])

	opex := body["opex_streams"].([]interface{})
	require.Len(t, opex, 1)
	values := opex[0].(map[string]interface{})["values"].([]interface{})
	assert.Len(t, values, 24)
	assert.Equal(t, float64(20), values[23])
}

func TestStatelessPayload_Errors(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/payload", `{"defaults": {"bogus": 1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/payload", `{"values": {"capex": [1, 2, 3, 4]}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/payload", `{"scalars": {"interest_rate": "NaN"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "interest_rate", resp.Field)
}

func TestScenarios_SaveLoadListDelete(t *testing.T) {
	env := newTestEnv(t, true)
	view := env.createSession(t, map[string]interface{}{"horizon": 5})
	env.do(t, http.MethodPut, "/api/sessions/"+view.ID+"/series/capex/values/4", map[string]float64{"value": 7777})

	rec := env.do(t, http.MethodPost, "/api/sessions/"+view.ID+"/scenarios/base-case", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var list struct {
		Backend   string               `json:"backend"`
		Scenarios []store.ScenarioInfo `json:"scenarios"`
	}
	decode(t, env.do(t, http.MethodGet, "/api/scenarios", nil), &list)
	assert.Equal(t, "file", list.Backend)
	require.Len(t, list.Scenarios, 1)
	assert.Equal(t, "base-case", list.Scenarios[0].Name)
	assert.Equal(t, 5, list.Scenarios[0].Horizon)

	rec = env.do(t, http.MethodPost, "/api/scenarios/base-case/load", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var loaded sessionView
	decode(t, rec, &loaded)
	assert.NotEqual(t, view.ID, loaded.ID)
	assert.Equal(t, forecast.Number(7777), loaded.Series[3].Values[4])

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/scenarios/base-case", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/scenarios/base-case", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/scenarios/base-case/load", nil).Code)
}

func TestScenarios_Errors(t *testing.T) {
	env := newTestEnv(t, true)
	id := env.createSession(t, nil).ID
	rec := env.do(t, http.MethodPost, "/api/sessions/"+id+"/scenarios/..hidden", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	disabled := newTestEnv(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, disabled.do(t, http.MethodGet, "/api/scenarios", nil).Code)
}

func TestScenarios_SaveNonFiniteDraft(t *testing.T) {
	env := newTestEnv(t, true)
	id := env.createSession(t, nil).ID

	rec := env.do(t, http.MethodPut, "/api/sessions/"+id+"/series/cogs_pct/values/1", map[string]string{"value": "NaN"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/sessions/"+id+"/scenarios/draft", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/scenarios/draft/load", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var loaded sessionView
	decode(t, rec, &loaded)

	rec = env.do(t, http.MethodGet, "/api/sessions/"+loaded.ID+"/payload", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "the restored draft keeps its non-finite value")
}
