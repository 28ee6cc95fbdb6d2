package assumption

import (
	"fmt"
	"strings"
)

// PeriodMode selects whether the backend reports years or months.
type PeriodMode string

const (
	ModeAnnual  PeriodMode = "annual"
	ModeMonthly PeriodMode = "monthly"
)

const monthsPerYear = 12

// Valid reports whether m is one of the enumerated modes.
func (m PeriodMode) Valid() bool {
	return m == ModeAnnual || m == ModeMonthly
}

// ParsePeriodMode accepts the mode names case-insensitively. An empty string means annual.
func ParsePeriodMode(s string) (PeriodMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "annual", "yearly":
		return ModeAnnual, nil
	case "monthly":
		return ModeMonthly, nil
	}
	return "", &HorizonError{Mode: PeriodMode(s)}
}

// Periods is the resolved shape of a forecast horizon.
type Periods struct {
	HorizonValue  int        `json:"horizon"`
	Mode          PeriodMode `json:"mode"`
	ReportPeriods int        `json:"report_periods"` // sent to the backend as "years"
	InputBuckets  int        `json:"input_buckets"`  // one per year, even in monthly mode
	HorizonMonths int        `json:"horizon_months"` // length of every stream vector
}

// HorizonYears is the number of year buckets used for stream totals.
func (p Periods) HorizonYears() int { return p.InputBuckets }

// ResolvePeriods turns a user-selected horizon into report and input period counts.
// horizonValue is years in annual mode and months in monthly mode.
func ResolvePeriods(horizonValue int, mode PeriodMode) (Periods, error) {
	if !mode.Valid() || horizonValue <= 0 {
		return Periods{}, &HorizonError{Value: horizonValue, Mode: mode}
	}

	p := Periods{
		HorizonValue:  horizonValue,
		Mode:          mode,
		ReportPeriods: horizonValue,
	}
	if mode == ModeAnnual {
		p.InputBuckets = horizonValue
		p.HorizonMonths = horizonValue * monthsPerYear
	} else {
		p.InputBuckets = (horizonValue + monthsPerYear - 1) / monthsPerYear
		p.HorizonMonths = horizonValue
	}
	return p, nil
}

// ClampHorizon corrects a raw control value to the smallest valid horizon.
func ClampHorizon(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

// Labels returns the column labels of a response for this horizon, period 0 included.
func (p Periods) Labels() []string {
	unit := "Year"
	if p.Mode == ModeMonthly {
		unit = "Month"
	}
	labels := make([]string, p.ReportPeriods+1)
	for i := range labels {
		labels[i] = fmt.Sprintf("%s %d", unit, i)
	}
	return labels
}
