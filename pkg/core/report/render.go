package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"forecast_workbench/pkg/core/forecast"
	"forecast_workbench/pkg/core/utils"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Missing is shown for values the backend could not compute.
const Missing = "n/a"

var printer = message.NewPrinter(language.English)

func nan() float64 { return math.NaN() }

// FormatAmount rounds to whole units with thousands separators, e.g. 1,234,568.
func FormatAmount(v forecast.Number) string {
	if !v.Finite() {
		return Missing
	}
	f := math.Round(v.Float())
	if math.Abs(f) >= 1e18 {
		return printer.Sprintf("%.0f", f)
	}
	return printer.Sprintf("%d", int64(f))
}

// FormatWithCurrency prefixes a currency symbol, keeping the sign in front.
func FormatWithCurrency(v forecast.Number, symbol string) string {
	s := FormatAmount(v)
	if symbol == "" || s == Missing {
		return s
	}
	if strings.HasPrefix(s, "-") {
		return "-" + symbol + s[1:]
	}
	return symbol + s
}

// =============================================================================
// MARKDOWN / HTML
// =============================================================================

// Markdown renders a statement as a GFM table.
func Markdown(st Statement) string {
	var b strings.Builder
	b.WriteString("| Item |")
	for _, c := range st.Columns {
		b.WriteString(" " + escapeCell(c) + " |")
	}
	b.WriteString("\n|---|")
	for range st.Columns {
		b.WriteString("---:|")
	}
	b.WriteString("\n")
	for _, row := range st.Rows {
		b.WriteString("| " + escapeCell(row.Label) + " |")
		for _, v := range row.Values {
			b.WriteString(" " + FormatAmount(v) + " |")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// HTML renders a statement through goldmark.
func HTML(st Statement) (string, error) {
	html, err := utils.MarkdownToHTML(Markdown(st))
	if err != nil {
		return "", fmt.Errorf("render %s: %w", st.Kind, err)
	}
	return html, nil
}

// Rendered is a statement with its HTML table, as served by the API.
type Rendered struct {
	Statement
	HTML string `json:"html"`
}

// RenderAll renders every statement to HTML.
func RenderAll(sts []Statement) ([]Rendered, error) {
	out := make([]Rendered, 0, len(sts))
	for _, st := range sts {
		html, err := HTML(st)
		if err != nil {
			return nil, err
		}
		out = append(out, Rendered{Statement: st, HTML: html})
	}
	return out, nil
}

// =============================================================================
// TERMINAL
// =============================================================================

// TextOptions control terminal rendering.
type TextOptions struct {
	Currency string
	Color    bool
}

// WriteText prints the statements as terminal tables.
func WriteText(w io.Writer, sts []Statement, opts TextOptions) {
	for i, st := range sts {
		fmt.Fprintln(w, text.Bold.Sprint(strings.ToUpper(st.Title)))

		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleLight)
		if opts.Color {
			tw.SetStyle(table.StyleColoredDark)
		}
		tw.Style().Options.SeparateRows = false

		hdr := table.Row{"Item"}
		for _, c := range st.Columns {
			hdr = append(hdr, c)
		}
		tw.AppendHeader(hdr)

		cfgs := make([]table.ColumnConfig, 0, len(st.Columns))
		for i := range st.Columns {
			cfgs = append(cfgs, table.ColumnConfig{Number: i + 2, Align: text.AlignRight, AlignHeader: text.AlignRight})
		}
		tw.SetColumnConfigs(cfgs)

		for _, r := range st.Rows {
			row := table.Row{r.Label}
			for _, v := range r.Values {
				cell := FormatWithCurrency(v, opts.Currency)
				if opts.Color && v.Finite() && v < 0 {
					cell = text.Colors{text.FgRed}.Sprint(cell)
				}
				row = append(row, cell)
			}
			tw.AppendRow(row)
		}
		tw.Render()

		if i < len(sts)-1 {
			fmt.Fprintln(w)
		}
	}
}

// =============================================================================
// KPI CHART
// =============================================================================

// ChartSeries is one plotted line.
type ChartSeries struct {
	Name   string            `json:"name"`
	Values []forecast.Number `json:"values"`
}

// Chart is the revenue / net income KPI chart data, period 0 excluded.
type Chart struct {
	Labels []string      `json:"labels"`
	Series []ChartSeries `json:"series"`
}

// KPIChart extracts Revenue and Net Income from period 1 onward.
func KPIChart(res *forecast.Result, fallback []string) Chart {
	labels := res.Labels
	if len(labels) == 0 {
		labels = fallback
	}
	chart := Chart{Labels: []string{}, Series: []ChartSeries{}}
	if len(labels) > 1 {
		chart.Labels = append(chart.Labels, labels[1:]...)
	}
	for _, name := range []string{"Revenue", "Net Income"} {
		values, ok := res.Line(name)
		if !ok {
			continue
		}
		var tail []forecast.Number
		if len(values) > 1 {
			tail = values[1:]
		}
		chart.Series = append(chart.Series, ChartSeries{Name: name, Values: align(tail, len(chart.Labels), false)})
	}
	return chart
}
