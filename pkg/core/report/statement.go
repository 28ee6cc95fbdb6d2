// Package report turns a forecast response into the three statements the
// workbench shows: income statement, balance sheet and cash flow statement.
package report

import (
	"fmt"
	"sort"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/forecast"
)

// =============================================================================
// STATEMENT LAYOUT
// =============================================================================

// Kind identifies a statement.
type Kind string

const (
	IncomeStatement Kind = "income_statement"
	BalanceSheet    Kind = "balance_sheet"
	CashFlow        Kind = "cash_flow"
)

// lineDef maps a response line to the row shown in a statement.
type lineDef struct {
	Source string // response key
	Label  string // row label
	Negate bool   // shown with the opposite sign
}

type layout struct {
	Kind    Kind
	Title   string
	Section string // excel_* key carrying pre-grouped rows
	// Opening reports whether the statement has a period-0 column.
	Opening bool
	Lines   []lineDef
}

var layouts = []layout{
	{
		Kind: IncomeStatement, Title: "Income Statement", Section: forecast.SectionIncome,
		Lines: []lineDef{
			{Source: "Revenue", Label: "Revenue"},
			{Source: "COGS", Label: "Cost of Goods Sold"},
			{Source: "Gross Profit", Label: "Gross Profit"},
			{Source: "Fixed Opex", Label: "Fixed Operating Expenses"},
			{Source: "Depreciation", Label: "Depreciation"},
			{Source: "EBIT", Label: "EBIT"},
			{Source: "Interest Expense", Label: "Interest Expense"},
			{Source: "EBT", Label: "EBT"},
			{Source: "Taxes", Label: "Taxes"},
			{Source: "Net Income", Label: "Net Income"},
		},
	},
	{
		Kind: BalanceSheet, Title: "Balance Sheet", Section: forecast.SectionBalance, Opening: true,
		Lines: []lineDef{
			{Source: "Closing Cash", Label: "Cash"},
			{Source: "Closing AR", Label: "Accounts Receivable"},
			{Source: "Closing Inventory", Label: "Inventory"},
			{Source: "Closing PP&E", Label: "Net PP&E"},
			{Source: "Closing AP", Label: "Accounts Payable"},
			{Source: "Closing Debt", Label: "Debt"},
			{Source: "Closing RE", Label: "Retained Earnings"},
		},
	},
	{
		Kind: CashFlow, Title: "Cash Flow Statement", Section: forecast.SectionCashFlow,
		Lines: []lineDef{
			{Source: "Net Income", Label: "Net Income"},
			{Source: "Depreciation", Label: "Add: Depreciation"},
			{Source: "Change in NWC", Label: "Less: Change in NWC", Negate: true},
			{Source: CapexLine, Label: "Cash Flow from Investing (CapEx)", Negate: true},
			{Source: "Net Change in Cash", Label: "Net Change in Cash"},
		},
	},
}

// CapexLine names capital expenditure in a result. The backend does not send
// it; WithInputs derives it from the submitted capex series.
const CapexLine = "CapEx"

// WithInputs returns res with lines derived from the submitted payload added
// where the response lacks them. Only annual payloads qualify, since there one
// input bucket is one statement column. res itself is not modified.
func WithInputs(res *forecast.Result, p *assumption.Payload) *forecast.Result {
	if res == nil || p == nil || p.PeriodMode != assumption.ModeAnnual {
		return res
	}
	if _, ok := res.Lines[CapexLine]; ok {
		return res
	}
	capex, ok := p.Series[capexWireKey()]
	if !ok {
		return res
	}

	out := *res
	out.Lines = make(map[string][]forecast.Number, len(res.Lines)+1)
	for k, v := range res.Lines {
		out.Lines[k] = v
	}
	values := make([]forecast.Number, len(capex))
	for i, v := range capex {
		values[i] = forecast.Number(v)
	}
	out.Lines[CapexLine] = values
	return &out
}

func capexWireKey() string {
	for _, spec := range assumption.StandardSeries() {
		if spec.Key == assumption.KeyCapex {
			return spec.WireKey
		}
	}
	return ""
}

// =============================================================================
// STATEMENTS
// =============================================================================

// Row is one statement line.
type Row struct {
	Label  string            `json:"label"`
	Values []forecast.Number `json:"values"`
}

// Statement is a rendered table: column headers and rows aligned to them.
type Statement struct {
	Kind    Kind     `json:"kind"`
	Title   string   `json:"title"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Build lays out the three statements. Column labels come from the response;
// fallback is used when the response has none (typically Periods.Labels()).
// Balance sheet rows keep period 0. Income and cash flow rows start at period 1:
// a value array one longer than the period-1 columns loses its first entry.
func Build(res *forecast.Result, fallback []string) []Statement {
	labels := res.Labels
	if len(labels) == 0 {
		labels = fallback
	}
	if len(labels) == 0 {
		labels = syntheticLabels(res)
	}

	out := make([]Statement, 0, len(layouts))
	for _, l := range layouts {
		columns := labels
		if !l.Opening && len(labels) > 0 {
			columns = labels[1:]
		}
		st := Statement{Kind: l.Kind, Title: l.Title, Columns: append([]string(nil), columns...)}

		source := res.Lines
		section, fromSection := res.Sections[l.Section]
		if fromSection && len(section) > 0 {
			source = section
		}

		used := make(map[string]bool)
		for _, def := range l.Lines {
			values, ok := source[def.Source]
			if !ok {
				continue
			}
			used[def.Source] = true
			st.Rows = append(st.Rows, Row{Label: def.Label, Values: align(values, len(columns), def.Negate)})
		}

		// Pre-grouped sections may carry rows the layout does not name.
		if fromSection {
			extra := make([]string, 0)
			for name := range section {
				if !used[name] {
					extra = append(extra, name)
				}
			}
			sort.Strings(extra)
			for _, name := range extra {
				st.Rows = append(st.Rows, Row{Label: name, Values: align(section[name], len(columns), false)})
			}
		}
		out = append(out, st)
	}
	return out
}

// align drops a leading period-0 entry when values is one longer than the
// columns, then pads or truncates to the column count.
func align(values []forecast.Number, columns int, negate bool) []forecast.Number {
	if len(values) == columns+1 {
		values = values[1:]
	}
	out := make([]forecast.Number, columns)
	for i := range out {
		if i >= len(values) {
			out[i] = forecast.Number(nan())
			continue
		}
		v := values[i]
		if negate && v.Finite() {
			v = -v
		}
		out[i] = v
	}
	return out
}

func syntheticLabels(res *forecast.Result) []string {
	longest := 0
	for _, v := range res.Lines {
		if len(v) > longest {
			longest = len(v)
		}
	}
	labels := make([]string, longest)
	for i := range labels {
		labels[i] = fmt.Sprintf("Period %d", i)
	}
	return labels
}
