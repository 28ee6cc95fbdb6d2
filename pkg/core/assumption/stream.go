package assumption

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Builder names the form section a stream belongs to.
type Builder string

const (
	BuilderRevenue Builder = "revenue"
	BuilderCOGS    Builder = "cogs"
	BuilderOpex    Builder = "opex"
)

// Builders lists the stream builders in payload order.
func Builders() []Builder {
	return []Builder{BuilderRevenue, BuilderCOGS, BuilderOpex}
}

// ParseBuilder accepts "revenue", "cogs" or "opex" in any case.
func ParseBuilder(s string) (Builder, error) {
	b := Builder(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Builders() {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown stream builder '%s'", s)
}

// WireKey is the payload array holding this builder's streams.
func (b Builder) WireKey() string { return string(b) + "_streams" }

// Classification is the optional tag on a stream.
type Classification string

const (
	ClassUnset   Classification = ""
	ClassRevenue Classification = "Revenue"
	ClassCOGS    Classification = "COGS"
	ClassOpEx    Classification = "OpEx"
)

// ParseClassification normalizes a tag; empty means untagged.
func ParseClassification(s string) (Classification, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ClassUnset, nil
	case "revenue":
		return ClassRevenue, nil
	case "cogs":
		return ClassCOGS, nil
	case "opex":
		return ClassOpEx, nil
	}
	return "", fmt.Errorf("unknown classification '%s'", s)
}

// Stream is a named line with one value per forecast month.
type Stream struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Classification Classification `json:"classification,omitempty"`
	Values         []float64      `json:"values"`
}

func (s *Stream) clone() Stream {
	c := *s
	c.Values = make([]float64, len(s.Values))
	copy(c.Values, s.Values)
	return c
}

// newStreamID returns a time-ordered id. UUIDv7 keeps creation order visible
// in the id while staying unique across the process.
func newStreamID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// StreamManager owns the streams of one builder. It is not safe for concurrent use.
type StreamManager struct {
	builder Builder
	months  int
	streams []*Stream
	newID   func() string
}

// NewStreamManager creates an empty manager for months forecast months.
func NewStreamManager(builder Builder, months int) *StreamManager {
	if months < 0 {
		months = 0
	}
	return &StreamManager{builder: builder, months: months, newID: newStreamID}
}

// Builder returns the section this manager serves.
func (m *StreamManager) Builder() Builder { return m.builder }

// Months is the current horizon in months.
func (m *StreamManager) Months() int { return m.months }

// Len is the number of streams.
func (m *StreamManager) Len() int { return len(m.streams) }

func (m *StreamManager) find(id string) (int, *Stream) {
	for i, s := range m.streams {
		if s.ID == id {
			return i, s
		}
	}
	return -1, nil
}

// AddStream creates a stream whose months are filled from seed and returns its id.
// A seed that yields a non-finite month over the horizon is rejected.
func (m *StreamManager) AddStream(name string, class Classification, seed Seed) (string, error) {
	if seed == nil {
		seed = FlatSeed{}
	}
	if err := seed.Validate(); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("%s stream %d", m.builder, len(m.streams)+1)
	}

	s := &Stream{
		ID:             m.newID(),
		Name:           name,
		Classification: class,
		Values:         make([]float64, m.months),
	}
	for i := range s.Values {
		v := seed.MonthValue(i)
		if !finite(v) {
			return "", &InvalidInputError{Field: "seed", Value: v}
		}
		s.Values[i] = v
	}
	m.streams = append(m.streams, s)
	return s.ID, nil
}

// RemoveStream deletes a stream. Unknown ids are ignored.
func (m *StreamManager) RemoveStream(id string) {
	i, _ := m.find(id)
	if i < 0 {
		return
	}
	m.streams = append(m.streams[:i], m.streams[i+1:]...)
}

// Rename changes a stream's display name.
func (m *StreamManager) Rename(id, name string) error {
	_, s := m.find(id)
	if s == nil {
		return fmt.Errorf("%w: '%s'", ErrUnknownStream, id)
	}
	s.Name = strings.TrimSpace(name)
	return nil
}

// SetMonthValue updates a single month.
func (m *StreamManager) SetMonthValue(id string, month int, v float64) error {
	_, s := m.find(id)
	if s == nil {
		return fmt.Errorf("%w: '%s'", ErrUnknownStream, id)
	}
	if month < 0 || month >= len(s.Values) {
		return &IndexError{Target: id, Index: month, Len: len(s.Values)}
	}
	s.Values[month] = v
	return nil
}

// ApplyForward sets month fromMonth and every later month to v.
func (m *StreamManager) ApplyForward(id string, fromMonth int, v float64) error {
	if err := m.SetMonthValue(id, fromMonth, v); err != nil {
		return err
	}
	_, s := m.find(id)
	for i := fromMonth + 1; i < len(s.Values); i++ {
		s.Values[i] = v
	}
	return nil
}

// ResizeAll truncates or pads every stream to months. Padding repeats the
// stream's last month; an empty stream pads with zero.
func (m *StreamManager) ResizeAll(months int) {
	if months < 0 {
		months = 0
	}
	m.months = months
	for _, s := range m.streams {
		if months <= len(s.Values) {
			s.Values = s.Values[:months:months]
			continue
		}
		last := 0.0
		if len(s.Values) > 0 {
			last = s.Values[len(s.Values)-1]
		}
		grown := make([]float64, months)
		copy(grown, s.Values)
		for i := len(s.Values); i < months; i++ {
			grown[i] = last
		}
		s.Values = grown
	}
}

// Stream returns a copy of one stream.
func (m *StreamManager) Stream(id string) (Stream, error) {
	_, s := m.find(id)
	if s == nil {
		return Stream{}, fmt.Errorf("%w: '%s'", ErrUnknownStream, id)
	}
	return s.clone(), nil
}

// Streams returns copies of all streams in creation order.
func (m *StreamManager) Streams() []Stream {
	out := make([]Stream, len(m.streams))
	for i, s := range m.streams {
		out[i] = s.clone()
	}
	return out
}

// =============================================================================
// ANNUAL TOTALS (preview only)
// =============================================================================

// StreamTotal is one stream's per-year sums.
type StreamTotal struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Classification Classification `json:"classification,omitempty"`
	Totals         []float64      `json:"totals"`
}

// StreamTotals groups the year sums of a builder.
type StreamTotals struct {
	Years            int                          `json:"years"`
	Streams          []StreamTotal                `json:"streams"`
	ByClassification map[Classification][]float64 `json:"by_classification"`
	Aggregate        []float64                    `json:"aggregate"`
}

// AnnualTotals sums each stream's months by year. A partial final year sums
// the months it has. A year containing a non-finite month totals to NaN.
func (m *StreamManager) AnnualTotals() StreamTotals {
	years := (m.months + monthsPerYear - 1) / monthsPerYear
	agg := newYearSums(years)
	byClass := make(map[Classification]yearSums)

	out := StreamTotals{
		Years:            years,
		Streams:          make([]StreamTotal, 0, len(m.streams)),
		ByClassification: make(map[Classification][]float64),
	}

	for _, s := range m.streams {
		sums := newYearSums(years)
		for i, v := range s.Values {
			sums.add(i/monthsPerYear, v)
		}

		classSums, ok := byClass[s.Classification]
		if !ok {
			classSums = newYearSums(years)
			byClass[s.Classification] = classSums
		}
		agg.merge(sums)
		classSums.merge(sums)

		out.Streams = append(out.Streams, StreamTotal{
			ID:             s.ID,
			Name:           s.Name,
			Classification: s.Classification,
			Totals:         sums.floats(),
		})
	}

	for class, sums := range byClass {
		out.ByClassification[class] = sums.floats()
	}
	out.Aggregate = agg.floats()
	return out
}

// yearSums accumulates exact decimal sums per year.
type yearSums struct {
	sums    []decimal.Decimal
	invalid []bool
}

func newYearSums(years int) yearSums {
	return yearSums{sums: make([]decimal.Decimal, years), invalid: make([]bool, years)}
}

func (y yearSums) add(year int, v float64) {
	if !finite(v) {
		y.invalid[year] = true
		return
	}
	y.sums[year] = y.sums[year].Add(decimal.NewFromFloat(v))
}

func (y yearSums) merge(other yearSums) {
	for i := range y.sums {
		y.sums[i] = y.sums[i].Add(other.sums[i])
		y.invalid[i] = y.invalid[i] || other.invalid[i]
	}
}

func (y yearSums) floats() []float64 {
	out := make([]float64, len(y.sums))
	for i, d := range y.sums {
		if y.invalid[i] {
			out[i] = math.NaN()
			continue
		}
		out[i] = d.InexactFloat64()
	}
	return out
}
