package assumption

import (
	"fmt"
	"time"
)

// =============================================================================
// WORKBENCH (one form session)
// =============================================================================

// Workbench ties the resolved horizon, the series store, the three stream
// builders and the scalar fields together for one form session.
// It is not safe for concurrent use.
type Workbench struct {
	periods       Periods
	store         *Store
	streams       map[Builder]*StreamManager
	Scalars       Scalars
	MonthlyDetail *int
	UpdatedAt     time.Time
}

// NewWorkbench resolves the horizon and registers the standard series with defaults.
func NewWorkbench(horizon int, mode PeriodMode, defaults map[string]float64) (*Workbench, error) {
	periods, err := ResolvePeriods(horizon, mode)
	if err != nil {
		return nil, err
	}
	if defaults == nil {
		defaults = StandardDefaults()
	}
	wb := &Workbench{
		periods:   periods,
		store:     NewStandardStore(periods.InputBuckets, defaults),
		streams:   make(map[Builder]*StreamManager),
		UpdatedAt: time.Now(),
	}
	for _, b := range Builders() {
		wb.streams[b] = NewStreamManager(b, periods.HorizonMonths)
	}
	return wb, nil
}

// Periods returns the resolved horizon.
func (wb *Workbench) Periods() Periods { return wb.periods }

// Store returns the series store.
func (wb *Workbench) Store() *Store { return wb.store }

// Streams returns the manager of one builder.
func (wb *Workbench) Streams(b Builder) (*StreamManager, error) {
	mgr, ok := wb.streams[b]
	if !ok {
		return nil, fmt.Errorf("unknown stream builder '%s'", b)
	}
	return mgr, nil
}

// SetHorizon resolves the new horizon before touching anything, so a rejected
// horizon leaves series and streams as they were.
func (wb *Workbench) SetHorizon(horizon int, mode PeriodMode) error {
	periods, err := ResolvePeriods(horizon, mode)
	if err != nil {
		return err
	}
	wb.periods = periods
	wb.store.SetHorizon(periods.InputBuckets)
	for _, b := range Builders() {
		wb.streams[b].ResizeAll(periods.HorizonMonths)
	}
	wb.touch()
	return nil
}

// Payload serializes the current state.
func (wb *Workbench) Payload() (*Payload, error) {
	managers := make([]*StreamManager, 0, len(wb.streams))
	for _, b := range Builders() {
		managers = append(managers, wb.streams[b])
	}
	return BuildPayload(PayloadInput{
		Periods:       wb.periods,
		Store:         wb.store,
		Streams:       managers,
		Scalars:       wb.Scalars,
		MonthlyDetail: wb.MonthlyDetail,
	})
}

func (wb *Workbench) touch() { wb.UpdatedAt = time.Now() }

// Touch records a mutation made through Store or Streams.
func (wb *Workbench) Touch() { wb.touch() }

// =============================================================================
// SNAPSHOTS
// =============================================================================

// SeriesSnapshot is the saved form of a series.
type SeriesSnapshot struct {
	Spec    SeriesSpec `json:"spec"`
	Default float64    `json:"default"`
	Values  []float64  `json:"values"`
}

// Snapshot is a JSON-friendly copy of a workbench, used for saved scenarios.
type Snapshot struct {
	Horizon       int                  `json:"horizon"`
	Mode          PeriodMode           `json:"mode"`
	Series        []SeriesSnapshot     `json:"series"`
	Streams       map[Builder][]Stream `json:"streams"`
	Scalars       Scalars              `json:"scalars"`
	MonthlyDetail *int                 `json:"monthly_detail,omitempty"`
}

// Snapshot copies the workbench state.
func (wb *Workbench) Snapshot() Snapshot {
	snap := Snapshot{
		Horizon:       wb.periods.HorizonValue,
		Mode:          wb.periods.Mode,
		Streams:       make(map[Builder][]Stream),
		Scalars:       wb.Scalars,
		MonthlyDetail: wb.MonthlyDetail,
	}
	for _, key := range wb.store.Keys() {
		s := wb.store.series[key]
		values, _ := wb.store.Vector(key)
		snap.Series = append(snap.Series, SeriesSnapshot{Spec: s.Spec, Default: s.Default, Values: values})
	}
	for _, b := range Builders() {
		snap.Streams[b] = wb.streams[b].Streams()
	}
	return snap
}

// Restore rebuilds a workbench from a snapshot. Vectors that do not match the
// snapshot's horizon are resized with the usual rules.
func Restore(snap Snapshot) (*Workbench, error) {
	periods, err := ResolvePeriods(snap.Horizon, snap.Mode)
	if err != nil {
		return nil, err
	}

	store := NewStore(0)
	for _, ss := range snap.Series {
		if err := store.Register(ss.Spec, ss.Default); err != nil {
			return nil, fmt.Errorf("restore series: %w", err)
		}
		s := store.series[ss.Spec.Key]
		s.Values = append([]float64(nil), ss.Values...)
	}
	store.SetHorizon(periods.InputBuckets)

	wb := &Workbench{
		periods:       periods,
		store:         store,
		streams:       make(map[Builder]*StreamManager),
		Scalars:       snap.Scalars,
		MonthlyDetail: snap.MonthlyDetail,
		UpdatedAt:     time.Now(),
	}
	for _, b := range Builders() {
		mgr := NewStreamManager(b, periods.HorizonMonths)
		for _, s := range snap.Streams[b] {
			restored := s.clone()
			if restored.ID == "" {
				restored.ID = mgr.newID()
			}
			mgr.streams = append(mgr.streams, &restored)
		}
		mgr.ResizeAll(periods.HorizonMonths)
		wb.streams[b] = mgr
	}
	return wb, nil
}
