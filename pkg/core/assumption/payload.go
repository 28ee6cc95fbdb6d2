package assumption

import (
	"encoding/json"
	"fmt"
	"sort"
)

// =============================================================================
// REQUEST PAYLOAD
// =============================================================================

// StreamPayload is one stream on the wire.
type StreamPayload struct {
	Name           string    `json:"name"`
	Classification string    `json:"classification,omitempty"`
	Values         []float64 `json:"values"`
}

// Payload is the request body of the calculation and export APIs.
// Series and Streams are flattened into top-level keys by MarshalJSON.
type Payload struct {
	Years            int        `json:"years"`
	PeriodMode       PeriodMode `json:"period_mode"`
	MonthlyDetail    *int       `json:"monthly_detail,omitempty"`
	CurrencySymbol   string     `json:"currency_symbol,omitempty"`
	InitialRevenue   float64    `json:"initial_revenue"`
	InitialPPE       float64    `json:"initial_ppe"`
	InitialCash      float64    `json:"initial_cash"`
	InitialDebt      float64    `json:"initial_debt"`
	TaxRate          float64    `json:"tax_rate"`
	InterestRate     float64    `json:"interest_rate"`
	DepreciationRate float64    `json:"depreciation_rate"`

	// Series maps a wire key (e.g. "cogs_pct_rates") to its normalized vector.
	Series map[string][]float64 `json:"-"`
	// Streams maps a builder wire key (e.g. "revenue_streams") to its streams.
	Streams map[string][]StreamPayload `json:"-"`
}

// payloadFields carries the fixed keys for MarshalJSON without recursing.
type payloadFields Payload

// MarshalJSON writes one flat object. encoding/json sorts map keys, so equal
// payloads always encode to equal bytes.
func (p Payload) MarshalJSON() ([]byte, error) {
	fixed, err := json.Marshal(payloadFields(p))
	if err != nil {
		return nil, err
	}
	flat := make(map[string]json.RawMessage)
	if err := json.Unmarshal(fixed, &flat); err != nil {
		return nil, err
	}
	for key, vec := range p.Series {
		raw, err := json.Marshal(vec)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", key, err)
		}
		flat[key] = raw
	}
	for _, b := range Builders() {
		streams := p.Streams[b.WireKey()]
		if streams == nil {
			streams = []StreamPayload{}
		}
		raw, err := json.Marshal(streams)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", b.WireKey(), err)
		}
		flat[b.WireKey()] = raw
	}
	return json.Marshal(flat)
}

// UnmarshalJSON splits a flat object back into fixed fields, series vectors
// (any array-of-numbers key) and stream arrays.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var fixed payloadFields
	if err := json.Unmarshal(data, &fixed); err != nil {
		return err
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	*p = Payload(fixed)
	p.Series = make(map[string][]float64)
	p.Streams = make(map[string][]StreamPayload)

	streamKeys := make(map[string]bool)
	for _, b := range Builders() {
		streamKeys[b.WireKey()] = true
	}
	for key, raw := range flat {
		if streamKeys[key] {
			var streams []StreamPayload
			if err := json.Unmarshal(raw, &streams); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			p.Streams[key] = streams
			continue
		}
		var vec []float64
		if err := json.Unmarshal(raw, &vec); err == nil {
			p.Series[key] = vec
		}
	}
	return nil
}

// Encode returns the JSON bytes sent to the backend.
func (p *Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// =============================================================================
// SERIALIZER
// =============================================================================

// PayloadInput is everything the serializer reads.
type PayloadInput struct {
	Periods       Periods
	Store         *Store
	Streams       []*StreamManager
	Scalars       Scalars
	MonthlyDetail *int
}

// BuildPayload assembles and validates the request payload. The first
// non-finite number aborts with an InvalidInputError naming its field; no
// partial payload is returned.
func BuildPayload(in PayloadInput) (*Payload, error) {
	if in.Store == nil {
		return nil, fmt.Errorf("payload: series store is required")
	}
	if in.Periods.InputBuckets != in.Store.Buckets() {
		return nil, &IndexError{Target: "series store", Index: in.Store.Buckets(), Len: in.Periods.InputBuckets}
	}

	sc := in.Scalars
	p := &Payload{
		Years:            in.Periods.ReportPeriods,
		PeriodMode:       in.Periods.Mode,
		CurrencySymbol:   sc.CurrencySymbol,
		InitialRevenue:   sc.InitialRevenue,
		InitialPPE:       sc.InitialPPE,
		InitialCash:      sc.InitialCash,
		InitialDebt:      sc.InitialDebt,
		TaxRate:          Normalize(UnitPercent, sc.TaxRate),
		InterestRate:     Normalize(UnitPercent, sc.InterestRate),
		DepreciationRate: Normalize(UnitPercent, sc.DepreciationRate),
		Series:           make(map[string][]float64),
		Streams:          make(map[string][]StreamPayload),
	}
	if in.MonthlyDetail != nil && in.Periods.Mode == ModeMonthly {
		detail := *in.MonthlyDetail
		if detail < 0 || detail > in.Periods.ReportPeriods {
			return nil, &IndexError{Target: "monthly_detail", Index: detail, Len: in.Periods.ReportPeriods + 1}
		}
		p.MonthlyDetail = &detail
	}

	for _, key := range in.Store.Keys() {
		spec, _ := in.Store.Spec(key)
		vec, err := in.Store.NormalizedVector(key)
		if err != nil {
			return nil, err
		}
		p.Series[spec.WireKey] = vec
	}

	for _, mgr := range in.Streams {
		if mgr == nil {
			continue
		}
		if mgr.Months() != in.Periods.HorizonMonths {
			return nil, &IndexError{Target: mgr.Builder().WireKey(), Index: mgr.Months(), Len: in.Periods.HorizonMonths}
		}
		key := mgr.Builder().WireKey()
		streams := p.Streams[key]
		for _, s := range mgr.Streams() {
			streams = append(streams, StreamPayload{
				Name:           s.Name,
				Classification: string(s.Classification),
				Values:         s.Values,
			})
		}
		p.Streams[key] = streams
	}

	if err := ValidatePayload(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ValidatePayload checks that every number in p is finite and that the
// horizon fields are usable. Fields are checked in a fixed order so the
// reported field is stable.
func ValidatePayload(p *Payload) error {
	if p.Years <= 0 || !p.PeriodMode.Valid() {
		return &HorizonError{Value: p.Years, Mode: p.PeriodMode}
	}

	scalars := []struct {
		field string
		v     float64
	}{
		{"initial_revenue", p.InitialRevenue},
		{"initial_ppe", p.InitialPPE},
		{"initial_cash", p.InitialCash},
		{"initial_debt", p.InitialDebt},
		{"tax_rate", p.TaxRate},
		{"interest_rate", p.InterestRate},
		{"depreciation_rate", p.DepreciationRate},
	}
	for _, sc := range scalars {
		if !finite(sc.v) {
			return &InvalidInputError{Field: sc.field, Value: sc.v}
		}
	}

	keys := make([]string, 0, len(p.Series))
	for k := range p.Series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for i, v := range p.Series[k] {
			if !finite(v) {
				return &InvalidInputError{Field: fmt.Sprintf("%s[%d]", k, i), Value: v}
			}
		}
	}

	for _, b := range Builders() {
		key := b.WireKey()
		for si, s := range p.Streams[key] {
			for i, v := range s.Values {
				if !finite(v) {
					return &InvalidInputError{Field: fmt.Sprintf("%s[%d].values[%d]", key, si, i), Value: v}
				}
			}
		}
	}
	return nil
}

// CheckShape verifies that every vector in p has the length the resolved
// horizon implies: input buckets for series, months for streams.
func CheckShape(p *Payload) (Periods, error) {
	periods, err := ResolvePeriods(p.Years, p.PeriodMode)
	if err != nil {
		return Periods{}, err
	}
	for key, vec := range p.Series {
		if len(vec) != periods.InputBuckets {
			return periods, &IndexError{Target: key, Index: len(vec), Len: periods.InputBuckets}
		}
	}
	for key, streams := range p.Streams {
		for si, s := range streams {
			if len(s.Values) != periods.HorizonMonths {
				return periods, &IndexError{Target: fmt.Sprintf("%s[%d]", key, si), Index: len(s.Values), Len: periods.HorizonMonths}
			}
		}
	}
	return periods, nil
}
