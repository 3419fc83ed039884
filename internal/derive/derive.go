// Package derive computes groundtruth odometry and groundtruth range/bearing
// observations from synchronized pose. Both passes read only already-synced
// records; they never touch the raw streams.
package derive

import (
	"math"

	"github.com/fieldrobotics/mrclam/internal/dataset"
	"github.com/fieldrobotics/mrclam/internal/geom"
	"github.com/fieldrobotics/mrclam/internal/monitoring"
)

// Odometry derives, for one agent, the forward and angular velocity that
// would have produced the synchronized pose sequence. For consecutive poses
// k and k+1 the forward velocity is the travelled distance over one period
// and the angular velocity is the shortest-arc heading change over one
// period. The final step has no successor pose, so it is copied from the
// synced (measured) odometry at that step.
func Odometry(a *dataset.Agent, period float64) error {
	n := len(a.Groundtruth.States)
	if n == 0 {
		return &dataset.PreconditionError{
			Op:       "groundtruth odometry derivation",
			Requires: "synchronized pose (run the synchronization engine first)",
		}
	}
	if len(a.Synced.Odometry) != n {
		return &dataset.PreconditionError{
			Op:       "groundtruth odometry derivation",
			Requires: "synced odometry aligned with synchronized pose",
		}
	}

	a.Groundtruth.Odometry = make([]dataset.Odometry, 0, n)
	for k := 0; k < n-1; k++ {
		cur, next := a.Groundtruth.States[k], a.Groundtruth.States[k+1]
		dtheta := next.Orientation - cur.Orientation
		a.Groundtruth.Odometry = append(a.Groundtruth.Odometry, dataset.Odometry{
			Time:            cur.Time,
			ForwardVelocity: geom.Distance(cur.X, cur.Y, next.X, next.Y) / period,
			// atan2 of sin/cos avoids the wraparound error a naive
			// subtraction would pick up at the +-pi boundary.
			AngularVelocity: math.Atan2(math.Sin(dtheta), math.Cos(dtheta)) / period,
		})
	}
	a.Groundtruth.Odometry = append(a.Groundtruth.Odometry, a.Synced.Odometry[n-1])
	return nil
}

// MeasurementsFor derives, for one observing agent, the range and bearing
// that would truly be seen for every subject in its synced measurement
// bundles. The observer pose is looked up by timestamp in the synchronized
// pose sequence; subjects are resolved through the registry to either
// another agent's pose at the same step or a landmark position.
//
// A subject barcode that resolves to nothing yields the invalid-observation
// sentinel pair instead of being dropped, so the error pass can line the
// bundles up with the synced ones and skip the sentinels.
func MeasurementsFor(a *dataset.Agent, agents []*dataset.Agent, landmarks []dataset.Landmark, reg *dataset.Registry, period float64) error {
	if len(a.Groundtruth.States) == 0 {
		return &dataset.PreconditionError{
			Op:       "groundtruth measurement derivation",
			Requires: "synchronized pose (run the synchronization engine first)",
		}
	}

	a.Groundtruth.Measurements = make([]dataset.Measurement, 0, len(a.Synced.Measurements))

	// Pose and measurements share the synced clock, so the matching pose is
	// found by a single advancing search rather than recomputation.
	ti := 0
	for _, bundle := range a.Synced.Measurements {
		for ti < len(a.Groundtruth.States) && a.Groundtruth.States[ti].Time < bundle.Time-period/2 {
			ti++
		}
		if ti == len(a.Groundtruth.States) || math.Abs(a.Groundtruth.States[ti].Time-bundle.Time) >= period/2 {
			// Bundles past the horizon are dropped during synchronization,
			// so every bundle should find its pose; skip defensively rather
			// than index out of range if one does not.
			monitoring.Logf("derive: agent %d: no synced pose for measurement bundle at t=%.3f", a.ID, bundle.Time)
			continue
		}
		observer := a.Groundtruth.States[ti]

		truth := dataset.Measurement{Time: bundle.Time}
		for _, subject := range bundle.Subjects {
			rng, bearing := dataset.InvalidRange, dataset.InvalidBearing
			if id, ok := reg.Resolve(subject); ok {
				var sx, sy float64
				switch id.Kind {
				case dataset.IdentityAgent:
					other := agents[id.Index].Groundtruth.States[ti]
					sx, sy = other.X, other.Y
				case dataset.IdentityLandmark:
					sx, sy = landmarks[id.Index].X, landmarks[id.Index].Y
				}
				rng, bearing = geom.RangeBearing(observer.X, observer.Y, observer.Orientation, sx, sy)
			} else {
				monitoring.Logf("derive: agent %d: unresolved subject barcode %d at t=%.3f", a.ID, subject, bundle.Time)
			}
			truth.Append(subject, rng, bearing)
		}
		a.Groundtruth.Measurements = append(a.Groundtruth.Measurements, truth)
	}
	return nil
}
