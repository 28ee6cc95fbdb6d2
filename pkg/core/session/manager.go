// Package session keeps the in-memory workbench sessions behind the HTTP API.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/forecast"
	"forecast_workbench/pkg/core/logging"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Session is one user's workbench. All access goes through Do, which holds
// the session lock, so there is a single writer at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	wb       *assumption.Workbench
	lastUsed time.Time
}

// Do runs fn with exclusive access to the workbench.
func (s *Session) Do(fn func(wb *assumption.Workbench) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
	return fn(s.wb)
}

// LastUsed is the time of the latest Do call.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Payload serializes the current state under the session lock.
func (s *Session) Payload() (*assumption.Payload, assumption.Periods, error) {
	var (
		p       *assumption.Payload
		periods assumption.Periods
	)
	err := s.Do(func(wb *assumption.Workbench) error {
		var err error
		periods = wb.Periods()
		p, err = wb.Payload()
		return err
	})
	return p, periods, err
}

// Options configure a Manager.
type Options struct {
	TTL      time.Duration // idle sessions older than this are dropped; 0 keeps them forever
	Defaults map[string]float64
	Scalars  assumption.Scalars
	Backend  forecast.Backend
	Log      zerolog.Logger
}

// Manager owns all sessions.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	ttl      time.Duration
	defaults map[string]float64
	scalars  assumption.Scalars
	backend  forecast.Backend
	log      zerolog.Logger
}

// NewManager creates an empty session manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      opts.TTL,
		defaults: opts.Defaults,
		scalars:  opts.Scalars,
		backend:  opts.Backend,
		log:      logging.Component(opts.Log, "session"),
	}
}

// Create starts a session with a new workbench.
func (m *Manager) Create(horizon int, mode assumption.PeriodMode) (*Session, error) {
	wb, err := assumption.NewWorkbench(horizon, mode, m.defaults)
	if err != nil {
		return nil, err
	}
	wb.Scalars = m.scalars
	return m.Adopt(wb), nil
}

// Adopt registers an existing workbench (for example a restored scenario) as a new session.
func (m *Manager) Adopt(wb *assumption.Workbench) *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		wb:        wb,
		lastUsed:  now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.Debug().Str("session_id", s.ID).Int("horizon", wb.Periods().HorizonValue).Msg("Session created")
	return s
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Delete removes a session. It reports whether the session existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// Count is the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many went.
func (m *Manager) Sweep(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	n := m.evict(m.idle(now), now)
	if n > 0 {
		m.log.Info().Int("expired", n).Msg("Swept idle sessions")
	}
	return n
}

// idle lists the sessions past the TTL at now.
func (m *Manager) idle(now time.Time) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, s := range m.sessions {
		if now.Sub(s.LastUsed()) > m.ttl {
			ids = append(ids, id)
		}
	}
	return ids
}

// evict deletes the listed sessions that are still idle at now. A session
// used after idle ran is kept.
func (m *Manager) evict(ids []string, now time.Time) int {
	if len(ids) == 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		s, ok := m.sessions[id]
		if !ok || now.Sub(s.LastUsed()) <= m.ttl {
			continue
		}
		delete(m.sessions, id)
		n++
	}
	return n
}

// JanitorJob sweeps idle sessions when run by the scheduler.
type JanitorJob struct {
	m   *Manager
	now func() time.Time
}

// Janitor returns the sweep job for this manager.
func (m *Manager) Janitor() *JanitorJob {
	return &JanitorJob{m: m, now: time.Now}
}

// Name returns the job name
func (j *JanitorJob) Name() string { return "session_janitor" }

// Run drops every session idle past the TTL.
func (j *JanitorJob) Run() error {
	j.m.Sweep(j.now())
	return nil
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submission is a payload and the backend's answer to it.
type Submission struct {
	Payload *assumption.Payload
	Periods assumption.Periods
	Result  *forecast.Result
}

// Submit serializes the session and sends it to the calculation backend. The
// payload is built under the session lock and sent after it is released, so
// edits made while the request is in flight only affect the next submission.
func (m *Manager) Submit(ctx context.Context, id string) (*Submission, error) {
	if m.backend == nil {
		return nil, fmt.Errorf("no forecast backend configured")
	}
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	p, periods, err := s.Payload()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := m.backend.Forecast(ctx, p)
	if err != nil {
		m.log.Warn().Err(err).Str("session_id", id).Msg("Forecast failed")
		return nil, fmt.Errorf("forecast: %w", err)
	}
	m.log.Info().
		Str("session_id", id).
		Int("years", p.Years).
		Str("mode", string(p.PeriodMode)).
		Dur("took", time.Since(start)).
		Msg("Forecast completed")

	if len(res.Labels) == 0 {
		res.Labels = periods.Labels()
	}
	return &Submission{Payload: p, Periods: periods, Result: res}, nil
}

// Export serializes the session and requests the spreadsheet.
func (m *Manager) Export(ctx context.Context, id string) (*forecast.ExportFile, error) {
	if m.backend == nil {
		return nil, fmt.Errorf("no forecast backend configured")
	}
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	p, _, err := s.Payload()
	if err != nil {
		return nil, err
	}
	file, err := m.backend.Export(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return file, nil
}
