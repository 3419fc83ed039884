// Package timesync resamples each agent's independently timestamped raw
// streams onto one shared fixed-period clock.
//
// Pose and odometry are resampled by causal linear interpolation. Raw
// measurement records are never interpolated: they are re-labelled to the
// nearest synced step and regrouped into per-step bundles. The asymmetry is
// deliberate — a range/bearing reading is an event, not a continuous signal.
package timesync

import (
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/fieldrobotics/mrclam/internal/dataset"
	"github.com/fieldrobotics/mrclam/internal/geom"
)

// orientationWrapThreshold separates real rotation from a 2*pi wrap between
// consecutive raw pose samples. Any raw delta beyond this is treated as a
// wrap and corrected before interpolating. Must be larger than the biggest
// physically possible per-sample turn and smaller than 2*pi.
const orientationWrapThreshold = 5.0

// timeEpsilon absorbs floating-point error in time/period divisions so that
// half-step boundaries round deterministically up.
const timeEpsilon = 1e-9

// Synchronizer resamples agents onto a shared clock with a fixed period.
type Synchronizer struct {
	period float64
}

// New returns a Synchronizer for the given sample period.
func New(period float64) *Synchronizer {
	return &Synchronizer{period: period}
}

// Period returns the configured sample period.
func (s *Synchronizer) Period() float64 { return s.period }

// Synchronize resamples every agent's raw pose and odometry onto the shared
// clock and regroups raw measurements into per-step bundles. Raw timestamps
// are shifted in place so the earliest sample across all agents and streams
// becomes t=0. The synced horizon is the smallest of the agents' latest
// stream times; synced samples run from t=0 to the horizon inclusive.
//
// Synced and groundtruth record sets are cleared and fully recomputed, so
// calling Synchronize twice on the same raw input yields identical results.
func (s *Synchronizer) Synchronize(agents []*dataset.Agent) error {
	if s.period <= 0 {
		return &dataset.PreconditionError{Op: "synchronize", Requires: "a positive sample period"}
	}
	if len(agents) == 0 {
		return &dataset.PreconditionError{Op: "synchronize", Requires: "at least one agent"}
	}
	for _, a := range agents {
		if err := checkStreams(a); err != nil {
			return err
		}
	}

	origin := rawOrigin(agents)
	for _, a := range agents {
		shiftTimes(a, origin)
	}

	horizon := syncedHorizon(agents)
	steps := int(math.Floor(horizon/s.period + timeEpsilon))

	g := new(errgroup.Group)
	for _, a := range agents {
		g.Go(func() error {
			s.resampleAgent(a, steps)
			return nil
		})
	}
	return g.Wait()
}

// checkStreams verifies that every raw stream the engine needs is non-empty.
func checkStreams(a *dataset.Agent) error {
	switch {
	case len(a.Raw.States) == 0:
		return &dataset.IncompleteDatasetError{AgentID: a.ID, Stream: "pose"}
	case len(a.Raw.Odometry) == 0:
		return &dataset.IncompleteDatasetError{AgentID: a.ID, Stream: "odometry"}
	case len(a.Raw.Measurements) == 0:
		return &dataset.IncompleteDatasetError{AgentID: a.ID, Stream: "measurement"}
	}
	return nil
}

// rawOrigin returns the earliest first-sample time across all agents and
// streams.
func rawOrigin(agents []*dataset.Agent) float64 {
	origin := agents[0].Raw.States[0].Time
	for _, a := range agents {
		origin = math.Min(origin, a.Raw.States[0].Time)
		origin = math.Min(origin, a.Raw.Odometry[0].Time)
		origin = math.Min(origin, a.Raw.Measurements[0].Time)
	}
	return origin
}

// shiftTimes subtracts the origin from every raw timestamp of one agent.
func shiftTimes(a *dataset.Agent, origin float64) {
	for i := range a.Raw.States {
		a.Raw.States[i].Time -= origin
	}
	for i := range a.Raw.Odometry {
		a.Raw.Odometry[i].Time -= origin
	}
	for i := range a.Raw.Measurements {
		a.Raw.Measurements[i].Time -= origin
	}
}

// syncedHorizon returns the smallest of the agents' latest stream times.
// Every agent has data of some kind up to this time.
func syncedHorizon(agents []*dataset.Agent) float64 {
	horizon := math.Inf(1)
	for _, a := range agents {
		last := a.Raw.States[len(a.Raw.States)-1].Time
		last = math.Max(last, a.Raw.Odometry[len(a.Raw.Odometry)-1].Time)
		last = math.Max(last, a.Raw.Measurements[len(a.Raw.Measurements)-1].Time)
		horizon = math.Min(horizon, last)
	}
	return horizon
}

// resampleAgent rebuilds one agent's groundtruth pose, synced odometry and
// synced measurement bundles for synced steps 0..steps.
func (s *Synchronizer) resampleAgent(a *dataset.Agent, steps int) {
	a.Groundtruth.States = make([]dataset.State, 0, steps+1)
	a.Synced.Odometry = make([]dataset.Odometry, 0, steps+1)
	a.Synced.Measurements = nil
	a.Groundtruth.Odometry = nil
	a.Groundtruth.Measurements = nil
	a.Error = dataset.RecordSet{}

	si, oi := 0, 0 // monotonic cursors into the raw streams
	for k := 0; k <= steps; k++ {
		t := float64(k) * s.period

		// Advance to the first raw pose strictly after t.
		for si < len(a.Raw.States) && a.Raw.States[si].Time <= t {
			si++
		}
		a.Groundtruth.States = append(a.Groundtruth.States, interpolatePose(a.Raw.States, si, t))

		for oi < len(a.Raw.Odometry) && a.Raw.Odometry[oi].Time <= t {
			oi++
		}
		a.Synced.Odometry = append(a.Synced.Odometry, interpolateOdometry(a.Raw.Odometry, oi, t))
	}

	s.regroupMeasurements(a, steps)
}

// interpolatePose produces the pose at synced time t. The cursor points at
// the first raw sample strictly after t. Steps before the first raw sample
// clamp to it (the robot is assumed stationary before recording started);
// steps after the last clamp to the last.
func interpolatePose(raw []dataset.State, cursor int, t float64) dataset.State {
	switch cursor {
	case 0:
		first := raw[0]
		return dataset.State{Time: t, X: first.X, Y: first.Y, Orientation: first.Orientation}
	case len(raw):
		last := raw[len(raw)-1]
		return dataset.State{Time: t, X: last.X, Y: last.Y, Orientation: last.Orientation}
	}

	prev, next := raw[cursor-1], raw[cursor]
	f := (t - prev.Time) / (next.Time - prev.Time)

	// Undo a 2*pi wrap before interpolating so the heading follows the
	// shortest arc, then re-wrap the result.
	orientation := next.Orientation
	if orientation-prev.Orientation > orientationWrapThreshold {
		orientation -= 2 * math.Pi
	} else if orientation-prev.Orientation < -orientationWrapThreshold {
		orientation += 2 * math.Pi
	}
	orientation = geom.WrapAngle(prev.Orientation + f*(orientation-prev.Orientation))

	return dataset.State{
		Time:        t,
		X:           prev.X + f*(next.X-prev.X),
		Y:           prev.Y + f*(next.Y-prev.Y),
		Orientation: orientation,
	}
}

// interpolateOdometry produces the odometry at synced time t. Unlike pose,
// steps at or outside the raw extent read zero velocity: the device reports
// nothing outside its recording window and extrapolating velocity would
// invent motion.
func interpolateOdometry(raw []dataset.Odometry, cursor int, t float64) dataset.Odometry {
	if cursor == 0 || cursor == len(raw) {
		return dataset.Odometry{Time: t}
	}
	prev, next := raw[cursor-1], raw[cursor]
	f := (t - prev.Time) / (next.Time - prev.Time)
	return dataset.Odometry{
		Time:            t,
		ForwardVelocity: prev.ForwardVelocity + f*(next.ForwardVelocity-prev.ForwardVelocity),
		AngularVelocity: prev.AngularVelocity + f*(next.AngularVelocity-prev.AngularVelocity),
	}
}

// regroupMeasurements re-labels each raw single-observation record to the
// nearest synced step and merges consecutive records that land on the same
// step into one bundle. Raw records are assumed to arrive in non-decreasing
// time order. Records rounding past the synced horizon are dropped — there
// is no synced pose to pair them with.
func (s *Synchronizer) regroupMeasurements(a *dataset.Agent, steps int) {
	lastStep := -1
	for i := range a.Raw.Measurements {
		raw := &a.Raw.Measurements[i]
		step := int(math.Floor(raw.Time/s.period + 0.5 + timeEpsilon))
		if step > steps {
			continue
		}

		if step == lastStep {
			n := len(a.Synced.Measurements)
			bundle := &a.Synced.Measurements[n-1]
			bundle.Subjects = append(bundle.Subjects, raw.Subjects...)
			bundle.Ranges = append(bundle.Ranges, raw.Ranges...)
			bundle.Bearings = append(bundle.Bearings, raw.Bearings...)
			continue
		}

		bundle := raw.Clone()
		bundle.Time = float64(step) * s.period
		a.Synced.Measurements = append(a.Synced.Measurements, bundle)
		lastStep = step
	}
}
