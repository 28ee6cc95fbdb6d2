package workbench

import (
	"time"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/forecast"
)

// Response views. Values go out as forecast.Number so a non-finite entry the
// user typed encodes as null instead of breaking the encoder.

func numbers(vs []float64) []forecast.Number {
	out := make([]forecast.Number, len(vs))
	for i, v := range vs {
		out[i] = forecast.Number(v)
	}
	return out
}

func floats(ns []forecast.Number) []float64 {
	out := make([]float64, len(ns))
	for i, n := range ns {
		out[i] = n.Float()
	}
	return out
}

type seriesView struct {
	assumption.SeriesSpec
	Default        forecast.Number   `json:"default"`
	Values         []forecast.Number `json:"values"`
	WouldOverwrite bool              `json:"would_overwrite"`
}

type streamView struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Classification string            `json:"classification,omitempty"`
	Values         []forecast.Number `json:"values"`
}

type scalarsView struct {
	InitialRevenue   forecast.Number `json:"initial_revenue"`
	InitialPPE       forecast.Number `json:"initial_ppe"`
	InitialCash      forecast.Number `json:"initial_cash"`
	InitialDebt      forecast.Number `json:"initial_debt"`
	TaxRate          forecast.Number `json:"tax_rate"`
	InterestRate     forecast.Number `json:"interest_rate"`
	DepreciationRate forecast.Number `json:"depreciation_rate"`
	CurrencySymbol   string          `json:"currency_symbol,omitempty"`
}

type sessionView struct {
	ID            string                  `json:"id"`
	Periods       assumption.Periods      `json:"periods"`
	Labels        []string                `json:"labels"`
	Series        []seriesView            `json:"series"`
	Streams       map[string][]streamView `json:"streams"`
	Scalars       scalarsView             `json:"scalars"`
	MonthlyDetail *int                    `json:"monthly_detail,omitempty"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func viewScalars(sc assumption.Scalars) scalarsView {
	return scalarsView{
		InitialRevenue:   forecast.Number(sc.InitialRevenue),
		InitialPPE:       forecast.Number(sc.InitialPPE),
		InitialCash:      forecast.Number(sc.InitialCash),
		InitialDebt:      forecast.Number(sc.InitialDebt),
		TaxRate:          forecast.Number(sc.TaxRate),
		InterestRate:     forecast.Number(sc.InterestRate),
		DepreciationRate: forecast.Number(sc.DepreciationRate),
		CurrencySymbol:   sc.CurrencySymbol,
	}
}

func viewSeries(st *assumption.Store, key string) (seriesView, error) {
	spec, err := st.Spec(key)
	if err != nil {
		return seriesView{}, err
	}
	def, _ := st.Default(key)
	values, _ := st.Vector(key)
	would, _ := st.WouldOverwriteOverrides(key)
	return seriesView{SeriesSpec: spec, Default: forecast.Number(def), Values: numbers(values), WouldOverwrite: would}, nil
}

func viewStream(s assumption.Stream) streamView {
	return streamView{ID: s.ID, Name: s.Name, Classification: string(s.Classification), Values: numbers(s.Values)}
}

// viewSession must be called under the session lock.
func viewSession(id string, wb *assumption.Workbench) sessionView {
	v := sessionView{
		ID:            id,
		Periods:       wb.Periods(),
		Labels:        wb.Periods().Labels(),
		Streams:       make(map[string][]streamView),
		Scalars:       viewScalars(wb.Scalars),
		MonthlyDetail: wb.MonthlyDetail,
		UpdatedAt:     wb.UpdatedAt,
	}
	for _, key := range wb.Store().Keys() {
		sv, _ := viewSeries(wb.Store(), key)
		v.Series = append(v.Series, sv)
	}
	for _, b := range assumption.Builders() {
		mgr, _ := wb.Streams(b)
		streams := make([]streamView, 0, mgr.Len())
		for _, s := range mgr.Streams() {
			streams = append(streams, viewStream(s))
		}
		v.Streams[string(b)] = streams
	}
	return v
}

type streamTotalView struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Classification string            `json:"classification,omitempty"`
	Totals         []forecast.Number `json:"totals"`
}

type totalsView struct {
	Builder          string                       `json:"builder"`
	Years            int                          `json:"years"`
	Streams          []streamTotalView            `json:"streams"`
	ByClassification map[string][]forecast.Number `json:"by_classification"`
	Aggregate        []forecast.Number            `json:"aggregate"`
}

func viewTotals(b assumption.Builder, t assumption.StreamTotals) totalsView {
	v := totalsView{
		Builder:          string(b),
		Years:            t.Years,
		Streams:          make([]streamTotalView, 0, len(t.Streams)),
		ByClassification: make(map[string][]forecast.Number),
		Aggregate:        numbers(t.Aggregate),
	}
	for _, s := range t.Streams {
		v.Streams = append(v.Streams, streamTotalView{
			ID:             s.ID,
			Name:           s.Name,
			Classification: string(s.Classification),
			Totals:         numbers(s.Totals),
		})
	}
	for class, sums := range t.ByClassification {
		key := string(class)
		if key == "" {
			key = "unclassified"
		}
		v.ByClassification[key] = numbers(sums)
	}
	return v
}
