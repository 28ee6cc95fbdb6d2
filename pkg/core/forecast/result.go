package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"forecast_workbench/pkg/core/utils"
)

// =============================================================================
// NUMBERS
// =============================================================================

// Number is a float that also decodes the non-standard literals the Python
// backend writes for NaN and infinities ("NaN", "Infinity", "-Infinity", null).
// Non-finite values encode as null.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch strings.Trim(raw, `"`) {
	case "null", "NaN", "nan":
		*n = Number(math.NaN())
		return nil
	case "Infinity", "inf":
		*n = Number(math.Inf(1))
		return nil
	case "-Infinity", "-inf":
		*n = Number(math.Inf(-1))
		return nil
	}
	v, err := strconv.ParseFloat(strings.Trim(raw, `"`), 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", raw)
	}
	*n = Number(v)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// Float returns the value as float64.
func (n Number) Float() float64 { return float64(n) }

// Finite reports whether the value is a real number.
func (n Number) Finite() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// =============================================================================
// RESULT
// =============================================================================

// Section keys of the optional pre-grouped statement maps.
const (
	SectionIncome   = "excel_is"
	SectionBalance  = "excel_bs"
	SectionCashFlow = "excel_cfs"
)

// Result is a decoded forecast response.
type Result struct {
	// Labels is the column header row (Years or Display_Labels), period 0 included.
	Labels []string `json:"labels"`
	// Lines maps a line name ("Revenue", "Closing Cash") to its values.
	Lines map[string][]Number `json:"lines"`
	// Sections holds excel_is / excel_bs / excel_cfs when the backend sends them.
	Sections map[string]map[string][]Number `json:"sections,omitempty"`
	// Raw is the response body as received.
	Raw []byte `json:"-"`
}

// Line returns a line's values and whether it was present.
func (r *Result) Line(name string) ([]Number, bool) {
	v, ok := r.Lines[name]
	return v, ok
}

// LineNames returns the line names in sorted order.
func (r *Result) LineNames() []string {
	names := make([]string, 0, len(r.Lines))
	for name := range r.Lines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// errorBody is the backend's failure shape.
type errorBody struct {
	Error string `json:"error"`
}

// DecodeResult parses a forecast response body. A body carrying an "error"
// key is reported as an error even when the status was 2xx.
func DecodeResult(body []byte) (*Result, error) {
	var fields map[string]json.RawMessage
	if _, err := utils.SmartParse(string(body), &fields); err != nil {
		return nil, fmt.Errorf("decode forecast response: %w", err)
	}

	if raw, ok := fields["error"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
			return nil, &APIError{Status: 200, Message: msg}
		}
	}

	res := &Result{
		Lines:    make(map[string][]Number),
		Sections: make(map[string]map[string][]Number),
		Raw:      body,
	}

	for key, raw := range fields {
		switch key {
		case "error":
			continue
		case "Years", "Display_Labels":
			labels, err := decodeLabels(raw)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
			// Display_Labels wins when both are present.
			if key == "Display_Labels" || res.Labels == nil {
				res.Labels = labels
			}
		case SectionIncome, SectionBalance, SectionCashFlow:
			var section map[string][]Number
			if err := json.Unmarshal(raw, &section); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
			res.Sections[key] = section
		default:
			var line []Number
			if err := json.Unmarshal(raw, &line); err == nil {
				res.Lines[key] = line
			}
		}
	}
	return res, nil
}

// decodeLabels accepts strings or numbers.
func decodeLabels(raw json.RawMessage) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	labels := make([]string, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			labels[i] = s
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err != nil {
			return nil, fmt.Errorf("label %d: %s", i, string(item))
		}
		labels[i] = strconv.FormatFloat(n, 'f', -1, 64)
	}
	return labels, nil
}
