// Package assumption implements the forecast-assumption model behind the workbench form.
// It keeps per-year assumption series and monthly named streams consistent with the
// forecast horizon and serializes them into the calculation API's request payload.
// Nothing here performs I/O; adapters (HTTP, CLI) sync it to and from their inputs.
package assumption

// =============================================================================
// UNIT KINDS
// =============================================================================

// UnitKind declares how a series value travels over the wire.
type UnitKind string

const (
	// UnitPercent values are entered as 0-100 and sent as fractions.
	UnitPercent UnitKind = "percent"
	// UnitAbsolute values (currency, day counts) are sent as entered.
	UnitAbsolute UnitKind = "absolute"
)

// Normalize converts a display value to its wire representation.
func Normalize(unit UnitKind, v float64) float64 {
	if unit == UnitPercent {
		return v / 100
	}
	return v
}

// Denormalize converts a wire value back to its display representation.
func Denormalize(unit UnitKind, v float64) float64 {
	if unit == UnitPercent {
		return v * 100
	}
	return v
}

// =============================================================================
// SERIES CATALOG
// =============================================================================

// SeriesSpec describes one assumption series.
type SeriesSpec struct {
	Key     string   `json:"key"`      // e.g. "revenue_growth"
	Label   string   `json:"label"`    // e.g. "Revenue Growth"
	Unit    UnitKind `json:"unit"`     // declared, never inferred from the key
	WireKey string   `json:"wire_key"` // payload field, e.g. "revenue_growth_rates"
}

// Standard series keys.
const (
	KeyRevenueGrowth = "revenue_growth"
	KeyCOGSPct       = "cogs_pct"
	KeyFixedOpex     = "fixed_opex"
	KeyCapex         = "capex"
	KeyDSODays       = "dso_days"
	KeyDIODays       = "dio_days"
	KeyDPODays       = "dpo_days"
	KeyDebtRepayment = "debt_repayment"
)

// StandardSeries returns the series every workbench starts with, in form order.
// fixed_opex and capex are absolute amounts, matching what the calculation API consumes.
func StandardSeries() []SeriesSpec {
	return []SeriesSpec{
		{Key: KeyRevenueGrowth, Label: "Revenue Growth", Unit: UnitPercent, WireKey: "revenue_growth_rates"},
		{Key: KeyCOGSPct, Label: "COGS % of Revenue", Unit: UnitPercent, WireKey: "cogs_pct_rates"},
		{Key: KeyFixedOpex, Label: "Fixed Opex", Unit: UnitAbsolute, WireKey: "fixed_opex_rates"},
		{Key: KeyCapex, Label: "Capex", Unit: UnitAbsolute, WireKey: "capex_rates"},
		{Key: KeyDSODays, Label: "DSO (days)", Unit: UnitAbsolute, WireKey: "dso_days_list"},
		{Key: KeyDIODays, Label: "DIO (days)", Unit: UnitAbsolute, WireKey: "dio_days_list"},
		{Key: KeyDPODays, Label: "DPO (days)", Unit: UnitAbsolute, WireKey: "dpo_days_list"},
		{Key: KeyDebtRepayment, Label: "Annual Debt Repayment", Unit: UnitAbsolute, WireKey: "annual_debt_repayment_list"},
	}
}

// StandardDefaults are the form's initial default values, in display units.
func StandardDefaults() map[string]float64 {
	return map[string]float64{
		KeyRevenueGrowth: 10,
		KeyCOGSPct:       40,
		KeyFixedOpex:     20000,
		KeyCapex:         5000,
		KeyDSODays:       30,
		KeyDIODays:       45,
		KeyDPODays:       30,
		KeyDebtRepayment: 0,
	}
}

// =============================================================================
// SCALARS
// =============================================================================

// Scalars are the single-valued form fields. Rates are in display units (percent).
type Scalars struct {
	InitialRevenue   float64 `json:"initial_revenue" yaml:"initial_revenue"`
	InitialPPE       float64 `json:"initial_ppe" yaml:"initial_ppe"`
	InitialCash      float64 `json:"initial_cash" yaml:"initial_cash"`
	InitialDebt      float64 `json:"initial_debt" yaml:"initial_debt"`
	TaxRate          float64 `json:"tax_rate" yaml:"tax_rate"`
	InterestRate     float64 `json:"interest_rate" yaml:"interest_rate"`
	DepreciationRate float64 `json:"depreciation_rate" yaml:"depreciation_rate"`
	CurrencySymbol   string  `json:"currency_symbol,omitempty" yaml:"currency_symbol"`
}

// StandardScalars are the form's initial single-valued fields.
func StandardScalars() Scalars {
	return Scalars{
		InitialRevenue:   100000,
		InitialPPE:       50000,
		InitialCash:      10000,
		InitialDebt:      20000,
		TaxRate:          25,
		InterestRate:     5,
		DepreciationRate: 10,
		CurrencySymbol:   "$",
	}
}
