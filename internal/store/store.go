// Package store persists processed runs to SQLite: the run metadata, the
// landmark map, the synced, groundtruth and error record sets for every
// agent, and the per-channel error statistics. The schema is managed by
// embedded golang-migrate migrations.
package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fieldrobotics/mrclam/internal/dataset"
)

type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the SQLite database at path and brings the
// schema up to the latest migration. Use ":memory:" for an in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc.org/sqlite serialises access itself but misbehaves with
	// concurrent writers on one file; a single connection sidesteps that.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// RecordSetKind labels which of an agent's record sets a row belongs to.
const (
	KindSynced      = "synced"
	KindGroundtruth = "groundtruth"
	KindError       = "error"
)

// SaveRun writes one processed run inside a single transaction and returns
// the generated run ID. Agents must already carry synced, groundtruth and
// error sets plus statistics; raw streams are not persisted.
func (s *Store) SaveRun(source string, samplePeriod float64, agents []*dataset.Agent, landmarks []dataset.Landmark) (string, error) {
	runID := uuid.NewString()

	tx, err := s.Begin()
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, source, sample_period, agent_count) VALUES (?, ?, ?, ?)`,
		runID, source, samplePeriod, len(agents),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if err := insertLandmarks(tx, runID, landmarks); err != nil {
		return "", err
	}
	for _, a := range agents {
		if err := insertAgent(tx, runID, a); err != nil {
			return "", fmt.Errorf("agent %d: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

func insertLandmarks(tx *sql.Tx, runID string, landmarks []dataset.Landmark) error {
	stmt, err := tx.Prepare(
		`INSERT INTO landmarks (run_id, id, barcode, x, y, x_stddev, y_stddev)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare landmarks: %w", err)
	}
	defer stmt.Close()

	for _, lm := range landmarks {
		if _, err := stmt.Exec(runID, lm.ID, lm.Barcode, lm.X, lm.Y, lm.XStdDev, lm.YStdDev); err != nil {
			return fmt.Errorf("insert landmark %d: %w", lm.ID, err)
		}
	}
	return nil
}

func insertAgent(tx *sql.Tx, runID string, a *dataset.Agent) error {
	if _, err := tx.Exec(
		`INSERT INTO agents (run_id, id, barcode) VALUES (?, ?, ?)`,
		runID, a.ID, a.Barcode,
	); err != nil {
		return fmt.Errorf("insert agent row: %w", err)
	}

	sets := []struct {
		kind string
		rs   *dataset.RecordSet
	}{
		{KindSynced, &a.Synced},
		{KindGroundtruth, &a.Groundtruth},
		{KindError, &a.Error},
	}
	for _, set := range sets {
		if err := insertRecordSet(tx, runID, a.ID, set.kind, set.rs); err != nil {
			return fmt.Errorf("%s set: %w", set.kind, err)
		}
	}

	return insertStatistics(tx, runID, a)
}

func insertRecordSet(tx *sql.Tx, runID string, agentID int, kind string, rs *dataset.RecordSet) error {
	stateStmt, err := tx.Prepare(
		`INSERT INTO states (run_id, agent_id, set_kind, step, time, x, y, orientation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare states: %w", err)
	}
	defer stateStmt.Close()
	for k, st := range rs.States {
		if _, err := stateStmt.Exec(runID, agentID, kind, k, st.Time, st.X, st.Y, st.Orientation); err != nil {
			return fmt.Errorf("insert state %d: %w", k, err)
		}
	}

	odomStmt, err := tx.Prepare(
		`INSERT INTO odometry (run_id, agent_id, set_kind, step, time, forward_velocity, angular_velocity)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare odometry: %w", err)
	}
	defer odomStmt.Close()
	for k, o := range rs.Odometry {
		if _, err := odomStmt.Exec(runID, agentID, kind, k, o.Time, o.ForwardVelocity, o.AngularVelocity); err != nil {
			return fmt.Errorf("insert odometry %d: %w", k, err)
		}
	}

	measStmt, err := tx.Prepare(
		`INSERT INTO measurements (run_id, agent_id, set_kind, time, subject, range_m, bearing_rad)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare measurements: %w", err)
	}
	defer measStmt.Close()
	for _, m := range rs.Measurements {
		for s := range m.Subjects {
			if _, err := measStmt.Exec(runID, agentID, kind, m.Time, m.Subjects[s], m.Ranges[s], m.Bearings[s]); err != nil {
				return fmt.Errorf("insert measurement at t=%.3f: %w", m.Time, err)
			}
		}
	}
	return nil
}

func insertStatistics(tx *sql.Tx, runID string, a *dataset.Agent) error {
	stmt, err := tx.Prepare(
		`INSERT INTO error_stats (run_id, agent_id, channel, mean, variance, median, q1, q3, iqr)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare error_stats: %w", err)
	}
	defer stmt.Close()

	channels := []struct {
		name  string
		stats *dataset.ErrorStatistics
	}{
		{"forward_velocity", &a.ForwardVelocityError},
		{"angular_velocity", &a.AngularVelocityError},
		{"range", &a.RangeError},
		{"bearing", &a.BearingError},
	}
	for _, ch := range channels {
		st := ch.stats
		if _, err := stmt.Exec(runID, a.ID, ch.name, st.Mean, st.Variance, st.Median, st.Q1, st.Q3, st.IQR); err != nil {
			return fmt.Errorf("insert %s stats: %w", ch.name, err)
		}
	}
	return nil
}

// RunSummary describes one stored run.
type RunSummary struct {
	ID           string
	Source       string
	SamplePeriod float64
	AgentCount   int
	CreatedAt    string
}

// ListRuns returns every stored run, newest first.
func (s *Store) ListRuns() ([]RunSummary, error) {
	rows, err := s.Query(
		`SELECT id, source, sample_period, agent_count, created_at
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Source, &r.SamplePeriod, &r.AgentCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ChannelStats is one agent's statistics for one error channel.
type ChannelStats struct {
	AgentID int
	Channel string
	Stats   dataset.ErrorStatistics
}

// LoadErrorStats returns the stored error statistics for a run, ordered by
// agent then channel.
func (s *Store) LoadErrorStats(runID string) ([]ChannelStats, error) {
	rows, err := s.Query(
		`SELECT agent_id, channel, mean, variance, median, q1, q3, iqr
		 FROM error_stats WHERE run_id = ? ORDER BY agent_id, channel`, runID)
	if err != nil {
		return nil, fmt.Errorf("query error_stats: %w", err)
	}
	defer rows.Close()

	var out []ChannelStats
	for rows.Next() {
		var cs ChannelStats
		st := &cs.Stats
		if err := rows.Scan(&cs.AgentID, &cs.Channel, &st.Mean, &st.Variance, &st.Median, &st.Q1, &st.Q3, &st.IQR); err != nil {
			return nil, fmt.Errorf("scan error_stats: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// LoadStates returns one agent's stored state stream of the given kind,
// ordered by step.
func (s *Store) LoadStates(runID string, agentID int, kind string) ([]dataset.State, error) {
	rows, err := s.Query(
		`SELECT time, x, y, orientation FROM states
		 WHERE run_id = ? AND agent_id = ? AND set_kind = ? ORDER BY step`,
		runID, agentID, kind)
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	var states []dataset.State
	for rows.Next() {
		var st dataset.State
		if err := rows.Scan(&st.Time, &st.X, &st.Y, &st.Orientation); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}
