// Package form describes a whole assumption form in one document, the shape
// used by the stateless payload endpoint and by CLI assumption files.
package form

import (
	"errors"
	"fmt"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/forecast"
)

// ErrInvalidForm marks a form that names something that does not exist.
var ErrInvalidForm = errors.New("invalid form")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidForm, fmt.Sprintf(format, args...))
}

// ScalarsPatch is a partial update of the single-valued fields; nil fields keep their value.
type ScalarsPatch struct {
	InitialRevenue   *forecast.Number `json:"initial_revenue"`
	InitialPPE       *forecast.Number `json:"initial_ppe"`
	InitialCash      *forecast.Number `json:"initial_cash"`
	InitialDebt      *forecast.Number `json:"initial_debt"`
	TaxRate          *forecast.Number `json:"tax_rate"`
	InterestRate     *forecast.Number `json:"interest_rate"`
	DepreciationRate *forecast.Number `json:"depreciation_rate"`
	CurrencySymbol   *string          `json:"currency_symbol"`
	MonthlyDetail    *int             `json:"monthly_detail"`
	ClearDetail      bool             `json:"clear_monthly_detail"`
}

// Apply writes the set fields into wb.
func (p ScalarsPatch) Apply(wb *assumption.Workbench) {
	set := func(dst *float64, src *forecast.Number) {
		if src != nil {
			*dst = src.Float()
		}
	}
	sc := &wb.Scalars
	set(&sc.InitialRevenue, p.InitialRevenue)
	set(&sc.InitialPPE, p.InitialPPE)
	set(&sc.InitialCash, p.InitialCash)
	set(&sc.InitialDebt, p.InitialDebt)
	set(&sc.TaxRate, p.TaxRate)
	set(&sc.InterestRate, p.InterestRate)
	set(&sc.DepreciationRate, p.DepreciationRate)
	if p.CurrencySymbol != nil {
		sc.CurrencySymbol = *p.CurrencySymbol
	}
	switch {
	case p.ClearDetail:
		wb.MonthlyDetail = nil
	case p.MonthlyDetail != nil:
		detail := *p.MonthlyDetail
		wb.MonthlyDetail = &detail
	}
	wb.Touch()
}

// Stream is one stream of a form. Explicit Values win over Seed.
type Stream struct {
	Name           string               `json:"name"`
	Classification string               `json:"classification"`
	Seed           *assumption.SeedSpec `json:"seed"`
	Values         []forecast.Number    `json:"values"`
}

// Form is a complete assumption form. Values entries that are null or
// missing follow the series default.
type Form struct {
	Horizon  int                           `json:"horizon"`
	Mode     string                        `json:"mode"`
	Defaults map[string]forecast.Number    `json:"defaults"`
	Values   map[string][]*forecast.Number `json:"values"`
	Scalars  ScalarsPatch                  `json:"scalars"`
	Streams  map[string][]Stream           `json:"streams"`
}

// Build applies the form to a fresh workbench seeded with defaults and scalars.
func (f Form) Build(defaults map[string]float64, scalars assumption.Scalars) (*assumption.Workbench, error) {
	mode, err := assumption.ParsePeriodMode(f.Mode)
	if err != nil {
		return nil, err
	}
	merged, err := f.mergeDefaults(defaults)
	if err != nil {
		return nil, err
	}
	wb, err := assumption.NewWorkbench(f.Horizon, mode, merged)
	if err != nil {
		return nil, err
	}
	wb.Scalars = scalars
	f.Scalars.Apply(wb)

	st := wb.Store()
	for key, vals := range f.Values {
		if _, err := st.Spec(key); err != nil {
			return nil, invalid("values: %v", err)
		}
		for i, v := range vals {
			if v == nil {
				continue
			}
			if err := st.SetOverride(key, i, v.Float()); err != nil {
				return nil, err
			}
		}
	}

	for name, streams := range f.Streams {
		b, err := assumption.ParseBuilder(name)
		if err != nil {
			return nil, invalid("streams: %v", err)
		}
		mgr, _ := wb.Streams(b)
		for i, s := range streams {
			if err := addStream(mgr, s); err != nil {
				return nil, fmt.Errorf("streams.%s[%d]: %w", b, i, err)
			}
		}
	}
	return wb, nil
}

// mergeDefaults layers the form's defaults over base so every bucket the
// form leaves unset starts from them.
func (f Form) mergeDefaults(base map[string]float64) (map[string]float64, error) {
	merged := assumption.StandardDefaults()
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range f.Defaults {
		if _, ok := merged[k]; !ok {
			return nil, invalid("defaults: %v: '%s'", assumption.ErrUnknownSeries, k)
		}
		merged[k] = v.Float()
	}
	return merged, nil
}

func addStream(mgr *assumption.StreamManager, s Stream) error {
	class, err := assumption.ParseClassification(s.Classification)
	if err != nil {
		return invalid("%v", err)
	}
	var seed assumption.Seed
	if s.Seed != nil && len(s.Values) == 0 {
		if seed, err = s.Seed.Seed(); err != nil {
			return invalid("%v", err)
		}
	}
	id, err := mgr.AddStream(s.Name, class, seed)
	if err != nil {
		return err
	}
	return fillMonths(mgr, id, s.Values)
}

// fillMonths copies values into a stream. A short list repeats its last value
// to the end of the horizon; extra values are dropped.
func fillMonths(mgr *assumption.StreamManager, id string, values []forecast.Number) error {
	months := mgr.Months()
	n := len(values)
	if n > months {
		n = months
	}
	for i := 0; i < n; i++ {
		if err := mgr.SetMonthValue(id, i, values[i].Float()); err != nil {
			return err
		}
	}
	if n > 0 && n < months {
		return mgr.ApplyForward(id, n, values[n-1].Float())
	}
	return nil
}
