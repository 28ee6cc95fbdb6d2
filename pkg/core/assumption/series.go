package assumption

import (
	"fmt"
)

// Series is one assumption with a default and a value per input bucket.
type Series struct {
	Spec    SeriesSpec
	Default float64
	Values  []float64
}

// diverges reports whether any bucket holds something other than the default.
func (s *Series) diverges() bool {
	for _, v := range s.Values {
		if v != s.Default {
			return true
		}
	}
	return false
}

func (s *Series) resize(n int) {
	if n <= len(s.Values) {
		s.Values = s.Values[:n:n]
		return
	}
	grown := make([]float64, n)
	copy(grown, s.Values)
	for i := len(s.Values); i < n; i++ {
		grown[i] = s.Default
	}
	s.Values = grown
}

// Store maps series keys to their per-bucket vectors and keeps every vector
// at the current bucket count. It is not safe for concurrent use.
type Store struct {
	buckets int
	order   []string
	series  map[string]*Series
}

// NewStore creates an empty store sized for buckets input periods.
func NewStore(buckets int) *Store {
	if buckets < 0 {
		buckets = 0
	}
	return &Store{
		buckets: buckets,
		series:  make(map[string]*Series),
	}
}

// NewStandardStore registers the standard catalog with the given defaults.
// Keys missing from defaults start at zero.
func NewStandardStore(buckets int, defaults map[string]float64) *Store {
	st := NewStore(buckets)
	for _, spec := range StandardSeries() {
		_ = st.Register(spec, defaults[spec.Key])
	}
	return st
}

// Register adds a series seeded entirely from def.
func (st *Store) Register(spec SeriesSpec, def float64) error {
	if spec.Key == "" {
		return fmt.Errorf("series key cannot be empty")
	}
	if _, exists := st.series[spec.Key]; exists {
		return fmt.Errorf("series '%s' already registered", spec.Key)
	}
	if spec.WireKey == "" {
		spec.WireKey = spec.Key + "_list"
	}
	if spec.Unit == "" {
		spec.Unit = UnitAbsolute
	}

	s := &Series{Spec: spec, Default: def}
	s.resize(st.buckets)
	st.series[spec.Key] = s
	st.order = append(st.order, spec.Key)
	return nil
}

// Buckets is the current input bucket count.
func (st *Store) Buckets() int { return st.buckets }

// Keys lists series keys in registration order.
func (st *Store) Keys() []string {
	out := make([]string, len(st.order))
	copy(out, st.order)
	return out
}

// Spec returns the declared spec of a series.
func (st *Store) Spec(key string) (SeriesSpec, error) {
	s, err := st.get(key)
	if err != nil {
		return SeriesSpec{}, err
	}
	return s.Spec, nil
}

func (st *Store) get(key string) (*Series, error) {
	s, ok := st.series[key]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownSeries, key)
	}
	return s, nil
}

// SetHorizon resizes every series to n buckets. Existing entries keep their
// index; new trailing entries take the series' current default; a shrink drops
// the tail.
func (st *Store) SetHorizon(n int) {
	if n < 0 {
		n = 0
	}
	st.buckets = n
	for _, key := range st.order {
		st.series[key].resize(n)
	}
}

// SetDefault changes the default used for buckets created from now on.
// Existing entries are left alone; ApplyDefaultToAll is the explicit overwrite.
func (st *Store) SetDefault(key string, v float64) error {
	s, err := st.get(key)
	if err != nil {
		return err
	}
	s.Default = v
	return nil
}

// Default returns the series default in display units.
func (st *Store) Default(key string) (float64, error) {
	s, err := st.get(key)
	if err != nil {
		return 0, err
	}
	return s.Default, nil
}

// SetOverride sets a single bucket.
func (st *Store) SetOverride(key string, index int, v float64) error {
	s, err := st.get(key)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(s.Values) {
		return &IndexError{Target: key, Index: index, Len: len(s.Values)}
	}
	s.Values[index] = v
	return nil
}

// ResetOverride puts a single bucket back to the current default.
func (st *Store) ResetOverride(key string, index int) error {
	s, err := st.get(key)
	if err != nil {
		return err
	}
	return st.SetOverride(key, index, s.Default)
}

// WouldOverwriteOverrides reports whether ApplyDefaultToAll would discard
// values that differ from the default. Callers use it to decide whether to ask
// the user before applying.
func (st *Store) WouldOverwriteOverrides(key string) (bool, error) {
	s, err := st.get(key)
	if err != nil {
		return false, err
	}
	return s.diverges(), nil
}

// ApplyDefaultToAll overwrites every bucket with the current default.
func (st *Store) ApplyDefaultToAll(key string) error {
	s, err := st.get(key)
	if err != nil {
		return err
	}
	for i := range s.Values {
		s.Values[i] = s.Default
	}
	return nil
}

// Vector returns a copy of the series in display units.
func (st *Store) Vector(key string) ([]float64, error) {
	s, err := st.get(key)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(s.Values))
	copy(out, s.Values)
	return out, nil
}

// NormalizedVector returns the series in wire units: percent series as
// fractions, absolute series unchanged.
func (st *Store) NormalizedVector(key string) ([]float64, error) {
	s, err := st.get(key)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = Normalize(s.Spec.Unit, v)
	}
	return out, nil
}
