package assumption

import (
	"encoding/json"
	"fmt"
	"math"
)

// Value is a float64 whose JSON form keeps non-finite numbers: NaN and the
// infinities are written as the strings "NaN", "Infinity" and "-Infinity".
// A draft may hold such values until it is serialized for the backend.
type Value float64

func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	}
	return json.Marshal(f)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value(math.NaN())
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "NaN":
			*v = Value(math.NaN())
		case "Infinity", "+Infinity":
			*v = Value(math.Inf(1))
		case "-Infinity":
			*v = Value(math.Inf(-1))
		default:
			return fmt.Errorf("not a number: %q", s)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

func toValues(fs []float64) []Value {
	if fs == nil {
		return nil
	}
	out := make([]Value, len(fs))
	for i, f := range fs {
		out[i] = Value(f)
	}
	return out
}

func fromValues(vs []Value) []float64 {
	if vs == nil {
		return nil
	}
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}
	return out
}

// Wire forms of a snapshot; every number goes through Value.

type seriesWire struct {
	Spec    SeriesSpec `json:"spec"`
	Default Value      `json:"default"`
	Values  []Value    `json:"values"`
}

type streamWire struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Classification Classification `json:"classification,omitempty"`
	Values         []Value        `json:"values"`
}

type scalarsWire struct {
	InitialRevenue   Value  `json:"initial_revenue"`
	InitialPPE       Value  `json:"initial_ppe"`
	InitialCash      Value  `json:"initial_cash"`
	InitialDebt      Value  `json:"initial_debt"`
	TaxRate          Value  `json:"tax_rate"`
	InterestRate     Value  `json:"interest_rate"`
	DepreciationRate Value  `json:"depreciation_rate"`
	CurrencySymbol   string `json:"currency_symbol,omitempty"`
}

type snapshotWire struct {
	Horizon       int                      `json:"horizon"`
	Mode          PeriodMode               `json:"mode"`
	Series        []seriesWire             `json:"series"`
	Streams       map[Builder][]streamWire `json:"streams"`
	Scalars       scalarsWire              `json:"scalars"`
	MonthlyDetail *int                     `json:"monthly_detail,omitempty"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	w := snapshotWire{
		Horizon:       s.Horizon,
		Mode:          s.Mode,
		Streams:       make(map[Builder][]streamWire, len(s.Streams)),
		MonthlyDetail: s.MonthlyDetail,
		Scalars: scalarsWire{
			InitialRevenue:   Value(s.Scalars.InitialRevenue),
			InitialPPE:       Value(s.Scalars.InitialPPE),
			InitialCash:      Value(s.Scalars.InitialCash),
			InitialDebt:      Value(s.Scalars.InitialDebt),
			TaxRate:          Value(s.Scalars.TaxRate),
			InterestRate:     Value(s.Scalars.InterestRate),
			DepreciationRate: Value(s.Scalars.DepreciationRate),
			CurrencySymbol:   s.Scalars.CurrencySymbol,
		},
	}
	for _, ss := range s.Series {
		w.Series = append(w.Series, seriesWire{Spec: ss.Spec, Default: Value(ss.Default), Values: toValues(ss.Values)})
	}
	for b, streams := range s.Streams {
		out := make([]streamWire, 0, len(streams))
		for _, st := range streams {
			out = append(out, streamWire{ID: st.ID, Name: st.Name, Classification: st.Classification, Values: toValues(st.Values)})
		}
		w.Streams[b] = out
	}
	return json.Marshal(w)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w snapshotWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Snapshot{
		Horizon:       w.Horizon,
		Mode:          w.Mode,
		Streams:       make(map[Builder][]Stream, len(w.Streams)),
		MonthlyDetail: w.MonthlyDetail,
		Scalars: Scalars{
			InitialRevenue:   float64(w.Scalars.InitialRevenue),
			InitialPPE:       float64(w.Scalars.InitialPPE),
			InitialCash:      float64(w.Scalars.InitialCash),
			InitialDebt:      float64(w.Scalars.InitialDebt),
			TaxRate:          float64(w.Scalars.TaxRate),
			InterestRate:     float64(w.Scalars.InterestRate),
			DepreciationRate: float64(w.Scalars.DepreciationRate),
			CurrencySymbol:   w.Scalars.CurrencySymbol,
		},
	}
	for _, ss := range w.Series {
		s.Series = append(s.Series, SeriesSnapshot{Spec: ss.Spec, Default: float64(ss.Default), Values: fromValues(ss.Values)})
	}
	for b, streams := range w.Streams {
		out := make([]Stream, 0, len(streams))
		for _, st := range streams {
			out = append(out, Stream{ID: st.ID, Name: st.Name, Classification: st.Classification, Values: fromValues(st.Values)})
		}
		s.Streams[b] = out
	}
	return nil
}
