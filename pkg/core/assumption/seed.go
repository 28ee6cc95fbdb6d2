package assumption

import (
	"fmt"
	"math"
)

// =============================================================================
// STREAM SEEDS
// =============================================================================

// Seed fills a new stream's monthly vector.
type Seed interface {
	// Name returns the seed identifier used in API payloads.
	Name() string

	// MonthValue returns the value for month m (0-based from the forecast start).
	MonthValue(m int) float64

	// Validate rejects non-finite parameters. Months that overflow for a
	// given horizon are caught by StreamManager.AddStream.
	Validate() error
}

// FlatSeed puts the same monthly value in every month.
type FlatSeed struct {
	Monthly float64 `json:"monthly"`
}

func (s FlatSeed) Name() string { return "flat" }

func (s FlatSeed) MonthValue(int) float64 { return s.Monthly }

func (s FlatSeed) Validate() error {
	if !finite(s.Monthly) {
		return &InvalidInputError{Field: "seed.monthly", Value: s.Monthly}
	}
	return nil
}

// GrowthSeed spreads an annual amount over twelve flat months and compounds it
// once per elapsed year.
// Formula: month(m) = BaseAnnual * (1 + GrowthPct/100)^(m/12) / 12, integer division.
type GrowthSeed struct {
	BaseAnnual float64 `json:"base_annual"`
	GrowthPct  float64 `json:"growth_pct"` // display units, 5 = 5%
}

func (s GrowthSeed) Name() string { return "growth" }

func (s GrowthSeed) MonthValue(m int) float64 {
	year := m / monthsPerYear
	return s.BaseAnnual * math.Pow(1+s.GrowthPct/100, float64(year)) / monthsPerYear
}

func (s GrowthSeed) Validate() error {
	if !finite(s.BaseAnnual) {
		return &InvalidInputError{Field: "seed.base_annual", Value: s.BaseAnnual}
	}
	if !finite(s.GrowthPct) {
		return &InvalidInputError{Field: "seed.growth_pct", Value: s.GrowthPct}
	}
	return nil
}

// SeedSpec is the wire form of a seed: {"kind": "flat", "value": 100} or
// {"kind": "growth", "value": 120000, "growth_pct": 5}.
type SeedSpec struct {
	Kind      string  `json:"kind"`
	Value     float64 `json:"value"`
	GrowthPct float64 `json:"growth_pct,omitempty"`
}

// Seed resolves the decoded kind into a Seed.
func (sp SeedSpec) Seed() (Seed, error) {
	switch sp.Kind {
	case "", "flat":
		return FlatSeed{Monthly: sp.Value}, nil
	case "growth":
		return GrowthSeed{BaseAnnual: sp.Value, GrowthPct: sp.GrowthPct}, nil
	}
	return nil, fmt.Errorf("unknown seed kind '%s'", sp.Kind)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
