package assumption

import (
	"errors"
	"testing"
)

func TestResolvePeriods_Annual(t *testing.T) {
	p, err := ResolvePeriods(3, ModeAnnual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ReportPeriods != 3 {
		t.Errorf("expected 3 report periods, got %d", p.ReportPeriods)
	}
	if p.InputBuckets != 3 {
		t.Errorf("expected 3 input buckets, got %d", p.InputBuckets)
	}
	if p.HorizonMonths != 36 {
		t.Errorf("expected 36 months, got %d", p.HorizonMonths)
	}
}

func TestResolvePeriods_MonthlyBuckets(t *testing.T) {
	p, err := ResolvePeriods(30, ModeMonthly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ReportPeriods != 30 {
		t.Errorf("expected 30 report periods, got %d", p.ReportPeriods)
	}
	if p.InputBuckets != 3 {
		t.Errorf("expected ceil(30/12)=3 input buckets, got %d", p.InputBuckets)
	}
	if p.HorizonMonths != 30 {
		t.Errorf("expected 30 months, got %d", p.HorizonMonths)
	}
}

func TestResolvePeriods_MonthlyExactYears(t *testing.T) {
	p, _ := ResolvePeriods(24, ModeMonthly)
	if p.InputBuckets != 2 {
		t.Errorf("expected 2 input buckets, got %d", p.InputBuckets)
	}
}

func TestResolvePeriods_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		horizon int
		mode    PeriodMode
	}{
		{"zero", 0, ModeAnnual},
		{"negative", -2, ModeMonthly},
		{"unknown mode", 3, PeriodMode("weekly")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolvePeriods(tc.horizon, tc.mode)
			if !errors.Is(err, ErrInvalidHorizon) {
				t.Errorf("expected ErrInvalidHorizon, got %v", err)
			}
		})
	}
}

func TestClampHorizon(t *testing.T) {
	if got := ClampHorizon(0); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := ClampHorizon(-5); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := ClampHorizon(7); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
}

func TestParsePeriodMode(t *testing.T) {
	if m, err := ParsePeriodMode("Monthly"); err != nil || m != ModeMonthly {
		t.Errorf("expected monthly, got %q (%v)", m, err)
	}
	if m, err := ParsePeriodMode(""); err != nil || m != ModeAnnual {
		t.Errorf("expected annual default, got %q (%v)", m, err)
	}
	if _, err := ParsePeriodMode("quarterly"); !errors.Is(err, ErrInvalidHorizon) {
		t.Errorf("expected ErrInvalidHorizon, got %v", err)
	}
}

func TestPeriods_Labels(t *testing.T) {
	p, _ := ResolvePeriods(2, ModeAnnual)
	labels := p.Labels()
	want := []string{"Year 0", "Year 1", "Year 2"}
	if len(labels) != len(want) {
		t.Fatalf("expected %d labels, got %d", len(want), len(labels))
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label %d: expected %q, got %q", i, want[i], labels[i])
		}
	}

	m, _ := ResolvePeriods(3, ModeMonthly)
	if got := m.Labels()[3]; got != "Month 3" {
		t.Errorf("expected 'Month 3', got %q", got)
	}
}
