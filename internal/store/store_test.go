package store

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldrobotics/mrclam/internal/dataset"
)

func testAgent() *dataset.Agent {
	a := &dataset.Agent{ID: 1, Barcode: 5}
	a.Synced.States = []dataset.State{
		{Time: 0, X: 1, Y: 2, Orientation: 0.5},
		{Time: 0.02, X: 1.1, Y: 2.1, Orientation: 0.6},
	}
	a.Synced.Odometry = []dataset.Odometry{
		{Time: 0, ForwardVelocity: 0.1, AngularVelocity: 0.05},
		{Time: 0.02, ForwardVelocity: 0.1, AngularVelocity: 0.05},
	}
	m := dataset.Measurement{Time: 0.02}
	m.Append(7, 1.5, 0.3)
	m.Append(8, 2.5, -0.2)
	a.Synced.Measurements = []dataset.Measurement{m}

	a.Groundtruth = *a.Synced.Clone()
	a.Error.Odometry = []dataset.Odometry{{Time: 0}}
	a.ForwardVelocityError = dataset.ErrorStatistics{Mean: 0.001, Variance: 0.0002, Median: 0.0008, Q1: -0.01, Q3: 0.01, IQR: 0.02}
	a.RangeError = dataset.ErrorStatistics{Mean: 0.05, Variance: 0.01}
	return a
}

func TestOpenAppliesMigrations(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

func TestSaveRunRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	agents := []*dataset.Agent{testAgent()}
	landmarks := []dataset.Landmark{
		{ID: 6, Barcode: 7, X: 3.5, Y: 1.25, XStdDev: 0.01, YStdDev: 0.02},
	}

	runID, err := s.SaveRun("MRCLAM_Dataset1", 0.02, agents, landmarks)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "MRCLAM_Dataset1", runs[0].Source)
	assert.Equal(t, 0.02, runs[0].SamplePeriod)
	assert.Equal(t, 1, runs[0].AgentCount)

	states, err := s.LoadStates(runID, 1, KindSynced)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, 1.1, states[1].X)
	assert.Equal(t, 0.6, states[1].Orientation)

	stats, err := s.LoadErrorStats(runID)
	require.NoError(t, err)
	require.Len(t, stats, 4) // one row per error channel

	byChannel := map[string]dataset.ErrorStatistics{}
	for _, cs := range stats {
		assert.Equal(t, 1, cs.AgentID)
		byChannel[cs.Channel] = cs.Stats
	}
	assert.InDelta(t, 0.001, byChannel["forward_velocity"].Mean, 1e-12)
	assert.InDelta(t, 0.02, byChannel["forward_velocity"].IQR, 1e-12)
	assert.InDelta(t, 0.01, byChannel["range"].Variance, 1e-12)
}

func TestSaveRunMultipleRuns(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	id1, err := s.SaveRun("sim seed=1", 0.02, []*dataset.Agent{testAgent()}, nil)
	require.NoError(t, err)
	id2, err := s.SaveRun("sim seed=2", 0.02, []*dataset.Agent{testAgent()}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	runs, err := s.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestLoadStatesUnknownRun(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	states, err := s.LoadStates("no-such-run", 1, KindSynced)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestMeasurementRowsPreserveSentinels(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	a := testAgent()
	m := dataset.Measurement{Time: 0.04}
	m.Append(99, dataset.InvalidRange, dataset.InvalidBearing)
	a.Groundtruth.Measurements = append(a.Groundtruth.Measurements, m)

	runID, err := s.SaveRun("sentinel", 0.02, []*dataset.Agent{a}, nil)
	require.NoError(t, err)

	var rng, brg float64
	err = s.QueryRow(
		`SELECT range_m, bearing_rad FROM measurements
		 WHERE run_id = ? AND set_kind = ? AND subject = 99`,
		runID, KindGroundtruth).Scan(&rng, &brg)
	require.NoError(t, err)
	assert.Equal(t, dataset.InvalidRange, rng)
	assert.InDelta(t, 2*math.Pi, brg, 1e-12)
}
