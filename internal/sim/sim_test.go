package sim

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldrobotics/mrclam/internal/dataset"
	"github.com/fieldrobotics/mrclam/internal/geom"
)

// smallConfig keeps unit-test runs fast; the calibrated defaults drive a
// 10000-step run.
func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Robots = 3
	cfg.Landmarks = 5
	cfg.Steps = 400
	return cfg
}

func TestLandmarkSeparationProperty(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Robots = 1
	cfg.Landmarks = 2
	cfg.Steps = 2

	for seed := int64(0); seed < 60; seed++ {
		_, landmarks, _, err := New(cfg, seed).Run()
		require.NoError(t, err, "seed %d", seed)
		require.Len(t, landmarks, 2)

		d := geom.Distance(landmarks[0].X, landmarks[0].Y, landmarks[1].X, landmarks[1].Y)
		assert.GreaterOrEqual(t, d, cfg.LandmarkSeparation, "seed %d", seed)
	}
}

func TestRunDeterministic(t *testing.T) {
	t.Parallel()
	a1, lm1, _, err := New(smallConfig(), 42).Run()
	require.NoError(t, err)
	a2, lm2, _, err := New(smallConfig(), 42).Run()
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(lm1, lm2))
	for i := range a1 {
		assert.Empty(t, cmp.Diff(a1[i].Groundtruth, a2[i].Groundtruth), "agent %d groundtruth", a1[i].ID)
		assert.Empty(t, cmp.Diff(a1[i].Synced, a2[i].Synced), "agent %d synced", a1[i].ID)
	}
}

func TestRunDifferentSeedsDiffer(t *testing.T) {
	t.Parallel()
	a1, _, _, err := New(smallConfig(), 1).Run()
	require.NoError(t, err)
	a2, _, _, err := New(smallConfig(), 2).Run()
	require.NoError(t, err)

	assert.NotEmpty(t, cmp.Diff(a1[0].Groundtruth.States, a2[0].Groundtruth.States))
}

func TestTrajectoryInvariants(t *testing.T) {
	t.Parallel()
	cfg := smallConfig()
	agents, _, _, err := New(cfg, 7).Run()
	require.NoError(t, err)
	require.Len(t, agents, cfg.Robots)

	for _, a := range agents {
		require.Len(t, a.Groundtruth.States, cfg.Steps)
		require.Len(t, a.Groundtruth.Odometry, cfg.Steps)
		require.Len(t, a.Synced.Odometry, cfg.Steps)

		for k, st := range a.Groundtruth.States {
			assert.InDelta(t, float64(k)*cfg.Period, st.Time, 1e-9)
			assert.True(t, st.Orientation > -math.Pi && st.Orientation <= math.Pi,
				"agent %d orientation %f out of range", a.ID, st.Orientation)
			// The steering controller keeps robots inside the arena.
			assert.True(t, st.X >= 0 && st.X <= cfg.ArenaWidth, "agent %d x=%f", a.ID, st.X)
			assert.True(t, st.Y >= 0 && st.Y <= cfg.ArenaHeight, "agent %d y=%f", a.ID, st.Y)
		}
		for _, o := range a.Groundtruth.Odometry {
			assert.True(t, o.ForwardVelocity >= 0 && o.ForwardVelocity <= cfg.MaxForwardVelocity,
				"agent %d forward velocity %f", a.ID, o.ForwardVelocity)
			assert.True(t, math.Abs(o.AngularVelocity) <= cfg.MaxAngularVelocity,
				"agent %d angular velocity %f", a.ID, o.AngularVelocity)
		}
	}
}

func TestInitialPlacementSeparation(t *testing.T) {
	t.Parallel()
	cfg := smallConfig()
	agents, landmarks, _, err := New(cfg, 11).Run()
	require.NoError(t, err)

	for i := range agents {
		si := agents[i].Groundtruth.States[0]
		for j := i + 1; j < len(agents); j++ {
			sj := agents[j].Groundtruth.States[0]
			assert.GreaterOrEqual(t, geom.Distance(si.X, si.Y, sj.X, sj.Y), cfg.RobotSeparation)
		}
		for _, lm := range landmarks {
			assert.GreaterOrEqual(t, geom.Distance(si.X, si.Y, lm.X, lm.Y), cfg.RobotLandmarkSeparation)
		}
	}
}

func TestMeasurementInvariants(t *testing.T) {
	t.Parallel()
	cfg := smallConfig()
	agents, _, _, err := New(cfg, 13).Run()
	require.NoError(t, err)

	sawBundle := false
	for _, a := range agents {
		require.Equal(t, len(a.Groundtruth.Measurements), len(a.Synced.Measurements))
		for _, m := range a.Groundtruth.Measurements {
			sawBundle = true
			require.Greater(t, m.Len(), 0)
			require.Equal(t, len(m.Subjects), len(m.Ranges))
			require.Equal(t, len(m.Subjects), len(m.Bearings))

			// Observation times land on the measurement sub-rate.
			step := int(math.Round(m.Time / cfg.Period))
			assert.Equal(t, 0, step%cfg.MeasurementSubrate, "bundle at t=%f", m.Time)

			for i := range m.Subjects {
				assert.LessOrEqual(t, m.Ranges[i], cfg.MaxRange)
				assert.LessOrEqual(t, math.Abs(m.Bearings[i]), cfg.HalfFOV)
				assert.NotEqual(t, a.Barcode, m.Subjects[i], "robot observed itself")
			}
		}
	}
	assert.True(t, sawBundle, "no measurements generated at all")
}

func TestNoiseProfilesWithinRanges(t *testing.T) {
	t.Parallel()
	cfg := smallConfig()
	agents, landmarks, _, err := New(cfg, 17).Run()
	require.NoError(t, err)

	for _, a := range agents {
		assertInRange(t, a.ForwardVelocityError.Variance, cfg.ForwardVelocityVariance)
		assertInRange(t, a.AngularVelocityError.Variance, cfg.AngularVelocityVariance)
		assertInRange(t, a.RangeError.Variance, cfg.RangeVariance)
		assertInRange(t, a.BearingError.Variance, cfg.BearingVariance)
	}
	for _, lm := range landmarks {
		assertInRange(t, lm.XStdDev, cfg.LandmarkStdDev)
		assertInRange(t, lm.YStdDev, cfg.LandmarkStdDev)
	}
}

func assertInRange(t *testing.T, v float64, r [2]float64) {
	t.Helper()
	assert.GreaterOrEqual(t, v, r[0])
	assert.LessOrEqual(t, v, r[1])
}

func TestSyncedDiffersFromGroundtruth(t *testing.T) {
	t.Parallel()
	agents, _, _, err := New(smallConfig(), 19).Run()
	require.NoError(t, err)

	a := agents[0]
	assert.NotEmpty(t, cmp.Diff(a.Groundtruth.Odometry, a.Synced.Odometry),
		"noise injection left odometry untouched")
	if len(a.Groundtruth.Measurements) > 0 {
		assert.NotEmpty(t, cmp.Diff(a.Groundtruth.Measurements, a.Synced.Measurements),
			"noise injection left measurements untouched")
	}
}

func TestRegistryCoversAllEntities(t *testing.T) {
	t.Parallel()
	cfg := smallConfig()
	agents, landmarks, reg, err := New(cfg, 23).Run()
	require.NoError(t, err)

	for i, a := range agents {
		id, ok := reg.Resolve(a.Barcode)
		require.True(t, ok)
		assert.Equal(t, dataset.IdentityAgent, id.Kind)
		assert.Equal(t, i, id.Index)
	}
	for i, lm := range landmarks {
		id, ok := reg.Resolve(lm.Barcode)
		require.True(t, ok)
		assert.Equal(t, dataset.IdentityLandmark, id.Kind)
		assert.Equal(t, i, id.Index)
	}
}

func TestRunPreconditions(t *testing.T) {
	t.Parallel()
	var precondition *dataset.PreconditionError

	cfg := smallConfig()
	cfg.Steps = 1
	_, _, _, err := New(cfg, 1).Run()
	require.ErrorAs(t, err, &precondition)

	cfg = smallConfig()
	cfg.Robots = 0
	_, _, _, err = New(cfg, 1).Run()
	require.ErrorAs(t, err, &precondition)

	cfg = smallConfig()
	cfg.Period = 0
	_, _, _, err = New(cfg, 1).Run()
	require.ErrorAs(t, err, &precondition)
}

func TestOverConstrainedArenaFails(t *testing.T) {
	t.Parallel()
	cfg := smallConfig()
	cfg.ArenaWidth = 3
	cfg.ArenaHeight = 3
	cfg.Landmarks = 40

	_, _, _, err := New(cfg, 1).Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arena too constrained")
}
