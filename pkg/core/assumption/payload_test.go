package assumption

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func testScalars() Scalars {
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

func testWorkbench(t *testing.T, horizon int, mode PeriodMode) *Workbench {
	t.Helper()
	wb, err := NewWorkbench(horizon, mode, StandardDefaults())
	if err != nil {
		t.Fatalf("new workbench: %v", err)
	}
	wb.Scalars = testScalars()
	return wb
}

func TestBuildPayload_Keys(t *testing.T) {
	wb := testWorkbench(t, 3, ModeAnnual)
	p, err := wb.Payload()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := p.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var flat map[string]interface{}
	if err := json.Unmarshal(raw, &flat); err != nil {
		t.Fatalf("decode: %v", err)
	}

	for _, key := range []string{
		"years", "period_mode", "initial_revenue", "initial_ppe", "initial_cash", "initial_debt",
		"tax_rate", "interest_rate", "depreciation_rate", "currency_symbol",
		"revenue_growth_rates", "cogs_pct_rates", "fixed_opex_rates", "capex_rates",
		"dso_days_list", "dio_days_list", "dpo_days_list", "annual_debt_repayment_list",
		"revenue_streams", "cogs_streams", "opex_streams",
	} {
		if _, ok := flat[key]; !ok {
			t.Errorf("missing key %s", key)
		}
	}
	if _, ok := flat["monthly_detail"]; ok {
		t.Error("monthly_detail should be omitted in annual mode")
	}
	if flat["years"].(float64) != 3 {
		t.Errorf("expected years=3, got %v", flat["years"])
	}
	if flat["tax_rate"].(float64) != 0.25 {
		t.Errorf("expected tax_rate as fraction 0.25, got %v", flat["tax_rate"])
	}
	growth := flat["revenue_growth_rates"].([]interface{})
	if len(growth) != 3 || growth[0].(float64) != 0.1 {
		t.Errorf("expected 3 fractional growth rates, got %v", growth)
	}
	if flat["fixed_opex_rates"].([]interface{})[0].(float64) != 20000 {
		t.Errorf("expected absolute fixed opex, got %v", flat["fixed_opex_rates"])
	}
}

func TestBuildPayload_MonthlyMode(t *testing.T) {
	wb := testWorkbench(t, 30, ModeMonthly)
	detail := 6
	wb.MonthlyDetail = &detail
	revenue, _ := wb.Streams(BuilderRevenue)
	_, _ = revenue.AddStream("Retail", ClassRevenue, FlatSeed{Monthly: 10})

	p, err := wb.Payload()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Years != 30 {
		t.Errorf("expected 30 report periods, got %d", p.Years)
	}
	if got := len(p.Series["cogs_pct_rates"]); got != 3 {
		t.Errorf("expected 3 year buckets, got %d", got)
	}
	streams := p.Streams["revenue_streams"]
	if len(streams) != 1 || len(streams[0].Values) != 30 {
		t.Fatalf("expected one 30-month stream, got %+v", streams)
	}
	if streams[0].Classification != "Revenue" {
		t.Errorf("expected classification Revenue, got %q", streams[0].Classification)
	}
	if p.MonthlyDetail == nil || *p.MonthlyDetail != 6 {
		t.Errorf("expected monthly_detail 6, got %v", p.MonthlyDetail)
	}
}

func TestBuildPayload_RejectsNonFiniteScalar(t *testing.T) {
	wb := testWorkbench(t, 3, ModeAnnual)
	wb.Scalars.InitialCash = math.NaN()

	p, err := wb.Payload()
	if p != nil {
		t.Error("expected no payload on validation failure")
	}
	if !errors.Is(err, ErrInvalidInputValue) {
		t.Fatalf("expected ErrInvalidInputValue, got %v", err)
	}
	if field, _ := FieldOf(err); field != "initial_cash" {
		t.Errorf("expected field initial_cash, got %q", field)
	}
}

func TestBuildPayload_RejectsNonFiniteSeriesEntry(t *testing.T) {
	wb := testWorkbench(t, 3, ModeAnnual)
	_ = wb.Store().SetOverride(KeyDSODays, 2, math.Inf(-1))

	_, err := wb.Payload()
	if field, _ := FieldOf(err); field != "dso_days_list[2]" {
		t.Errorf("expected field dso_days_list[2], got %q (%v)", field, err)
	}
}

func TestBuildPayload_RejectsNonFiniteStreamMonth(t *testing.T) {
	wb := testWorkbench(t, 2, ModeAnnual)
	opex, _ := wb.Streams(BuilderOpex)
	id, _ := opex.AddStream("Rent", ClassOpEx, FlatSeed{Monthly: 5})
	_ = opex.SetMonthValue(id, 14, math.NaN())

	_, err := wb.Payload()
	if field, _ := FieldOf(err); field != "opex_streams[0].values[14]" {
		t.Errorf("expected field opex_streams[0].values[14], got %q (%v)", field, err)
	}
}

func TestBuildPayload_MonthlyDetailOutOfRange(t *testing.T) {
	wb := testWorkbench(t, 12, ModeMonthly)
	detail := 13
	wb.MonthlyDetail = &detail
	if _, err := wb.Payload(); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestBuildPayload_Deterministic(t *testing.T) {
	wb := testWorkbench(t, 4, ModeAnnual)
	cogs, _ := wb.Streams(BuilderCOGS)
	_, _ = cogs.AddStream("Materials", ClassCOGS, GrowthSeed{BaseAnnual: 2400, GrowthPct: 3})

	p1, _ := wb.Payload()
	p2, _ := wb.Payload()
	a, _ := p1.Encode()
	b, _ := p2.Encode()
	if !bytes.Equal(a, b) {
		t.Errorf("expected identical encodings:\n%s\n%s", a, b)
	}
}

func TestPayload_UnmarshalRoundTrip(t *testing.T) {
	wb := testWorkbench(t, 2, ModeAnnual)
	rev, _ := wb.Streams(BuilderRevenue)
	_, _ = rev.AddStream("Online", ClassUnset, FlatSeed{Monthly: 3})
	p, _ := wb.Payload()
	raw, _ := p.Encode()

	var decoded Payload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Years != 2 || decoded.PeriodMode != ModeAnnual {
		t.Errorf("unexpected horizon fields: %+v", decoded)
	}
	if len(decoded.Series) != len(StandardSeries()) {
		t.Errorf("expected %d series, got %d", len(StandardSeries()), len(decoded.Series))
	}
	if len(decoded.Streams["revenue_streams"]) != 1 {
		t.Errorf("expected one revenue stream, got %v", decoded.Streams["revenue_streams"])
	}
	if _, err := CheckShape(&decoded); err != nil {
		t.Errorf("unexpected shape error: %v", err)
	}
}

func TestCheckShape_WrongLength(t *testing.T) {
	p := &Payload{
		Years:      3,
		PeriodMode: ModeAnnual,
		Series:     map[string][]float64{"cogs_pct_rates": {0.4, 0.4}},
	}
	if _, err := CheckShape(p); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestValidatePayload_InvalidHorizon(t *testing.T) {
	p := &Payload{Years: 0, PeriodMode: ModeAnnual}
	if err := ValidatePayload(p); !errors.Is(err, ErrInvalidHorizon) {
		t.Errorf("expected ErrInvalidHorizon, got %v", err)
	}
}
