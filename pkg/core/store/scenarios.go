package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"forecast_workbench/pkg/core/assumption"
	"forecast_workbench/pkg/core/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrScenarioNotFound is returned when no scenario has the requested name.
var ErrScenarioNotFound = errors.New("scenario not found")

var scenarioName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidateName checks that a scenario name is usable as a key and a file name.
func ValidateName(name string) error {
	if !scenarioName.MatchString(name) {
		return fmt.Errorf("invalid scenario name %q: use 1-64 letters, digits, '-' or '_'", name)
	}
	return nil
}

// Scenario is a saved workbench.
type Scenario struct {
	Name     string              `json:"name"`
	Horizon  int                 `json:"horizon"`
	Mode     string              `json:"mode"`
	Snapshot assumption.Snapshot `json:"snapshot"`
	SavedAt  time.Time           `json:"saved_at"`
}

// ScenarioInfo is a listing entry.
type ScenarioInfo struct {
	Name    string    `json:"name"`
	Horizon int       `json:"horizon"`
	Mode    string    `json:"mode"`
	SavedAt time.Time `json:"saved_at"`
}

// ScenarioStore saves named workbench snapshots.
// Supports Hybrid Vault: DB (Primary) + File System (Fallback/Local)
type ScenarioStore struct {
	pool    *pgxpool.Pool
	fileDir string
	log     zerolog.Logger
}

// NewScenarioStore creates a store. If pool is nil it keeps scenarios as JSON
// files in dir (default .cache/scenarios). With a pool, files are written as a
// local copy only when dir is set.
func NewScenarioStore(pool *pgxpool.Pool, dir string, log zerolog.Logger) *ScenarioStore {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "scenarios")
	}
	l := logging.Component(log, "scenario_store")
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			l.Warn().Err(err).Str("dir", dir).Msg("Cannot create scenario dir")
		}
	}
	return &ScenarioStore{pool: pool, fileDir: dir, log: l}
}

// Backend names where scenarios live.
func (s *ScenarioStore) Backend() string {
	if s.pool != nil {
		return "postgres"
	}
	return "file"
}

// Save stores a snapshot under name, replacing any previous one.
func (s *ScenarioStore) Save(ctx context.Context, name string, snap assumption.Snapshot) (*Scenario, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	sc := &Scenario{
		Name:     name,
		Horizon:  snap.Horizon,
		Mode:     string(snap.Mode),
		Snapshot: snap,
		SavedAt:  time.Now().UTC(),
	}
	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// 1. Save to DB
	if s.pool != nil {
		query := `
			INSERT INTO workbench_scenarios (name, horizon, period_mode, snapshot)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name)
			DO UPDATE SET
				horizon = EXCLUDED.horizon,
				period_mode = EXCLUDED.period_mode,
				snapshot = EXCLUDED.snapshot,
				updated_at = NOW()
		`
		if _, err := s.pool.Exec(ctx, query, name, sc.Horizon, sc.Mode, snapJSON); err != nil {
			return nil, fmt.Errorf("failed to save scenario to db: %w", err)
		}
	}

	// 2. Save to File (if configured)
	if s.fileDir != "" {
		if err := s.writeFile(sc); err != nil {
			return nil, err
		}
	}

	s.log.Info().Str("scenario", name).Str("backend", s.Backend()).Msg("Scenario saved")
	return sc, nil
}

// Load returns the scenario saved under name.
func (s *ScenarioStore) Load(ctx context.Context, name string) (*Scenario, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	if s.pool != nil {
		query := `
			SELECT horizon, period_mode, snapshot, updated_at
			FROM workbench_scenarios
			WHERE name = $1
		`
		var (
			sc       = Scenario{Name: name}
			snapJSON []byte
		)
		err := s.pool.QueryRow(ctx, query, name).Scan(&sc.Horizon, &sc.Mode, &snapJSON, &sc.SavedAt)
		switch {
		case err == nil:
			if err := json.Unmarshal(snapJSON, &sc.Snapshot); err != nil {
				return nil, fmt.Errorf("failed to unmarshal db scenario: %w", err)
			}
			return &sc, nil
		case errors.Is(err, pgx.ErrNoRows):
			if s.fileDir == "" {
				return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, name)
			}
		default:
			if s.fileDir == "" {
				return nil, fmt.Errorf("failed to load scenario: %w", err)
			}
			s.log.Warn().Err(err).Str("scenario", name).Msg("DB load failed, trying file copy")
		}
	}

	return s.readFile(s.scenarioPath(name))
}

// List returns all saved scenarios ordered by name.
func (s *ScenarioStore) List(ctx context.Context) ([]ScenarioInfo, error) {
	if s.pool != nil {
		rows, err := s.pool.Query(ctx, `
			SELECT name, horizon, period_mode, updated_at
			FROM workbench_scenarios
			ORDER BY name
		`)
		if err != nil {
			return nil, fmt.Errorf("failed to list scenarios: %w", err)
		}
		defer rows.Close()

		var out []ScenarioInfo
		for rows.Next() {
			var info ScenarioInfo
			if err := rows.Scan(&info.Name, &info.Horizon, &info.Mode, &info.SavedAt); err != nil {
				return nil, fmt.Errorf("failed to scan scenario: %w", err)
			}
			out = append(out, info)
		}
		return out, rows.Err()
	}

	entries, err := os.ReadDir(s.fileDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}
	var out []ScenarioInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		sc, err := s.readFile(filepath.Join(s.fileDir, e.Name()))
		if err != nil {
			s.log.Warn().Err(err).Str("file", e.Name()).Msg("Skipping unreadable scenario")
			continue
		}
		out = append(out, ScenarioInfo{Name: sc.Name, Horizon: sc.Horizon, Mode: sc.Mode, SavedAt: sc.SavedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a scenario and reports whether it existed.
func (s *ScenarioStore) Delete(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	existed := false

	if s.pool != nil {
		tag, err := s.pool.Exec(ctx, `DELETE FROM workbench_scenarios WHERE name = $1`, name)
		if err != nil {
			return false, fmt.Errorf("failed to delete scenario: %w", err)
		}
		existed = tag.RowsAffected() > 0
	}

	if s.fileDir != "" {
		err := os.Remove(s.scenarioPath(name))
		switch {
		case err == nil:
			existed = true
		case !os.IsNotExist(err):
			return existed, fmt.Errorf("failed to delete scenario file: %w", err)
		}
	}
	return existed, nil
}

// Internal File Helpers

func (s *ScenarioStore) scenarioPath(name string) string {
	return filepath.Join(s.fileDir, name+".json")
}

func (s *ScenarioStore) writeFile(sc *Scenario) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	path := s.scenarioPath(sc.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to save scenario file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save scenario file: %w", err)
	}
	return nil
}

func (s *ScenarioStore) readFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			name := strings.TrimSuffix(filepath.Base(path), ".json")
			return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, name)
		}
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", filepath.Base(path), err)
	}
	return &sc, nil
}
