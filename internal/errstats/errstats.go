// Package errstats characterises sensor noise for each agent by differencing
// groundtruth and synced records, removing statistical outliers from the
// measurement errors, and summarising every error channel with sample
// statistics and quartiles.
package errstats

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/fieldrobotics/mrclam/internal/dataset"
	"github.com/fieldrobotics/mrclam/internal/geom"
)

// Config holds the outlier-rejection multipliers. The defaults come from
// manual tuning against the real datasets; treat them as configuration, not
// as a law.
type Config struct {
	RangeIQRMultiplier   float64
	BearingIQRMultiplier float64
}

// DefaultConfig returns the tuned rejection multipliers.
func DefaultConfig() Config {
	return Config{RangeIQRMultiplier: 10, BearingIQRMultiplier: 20}
}

// Characterise runs the full error pass for one agent: elementwise error,
// quartiles, IQR outlier removal on the measurement errors, then sample mean
// and variance over the cleaned channels.
func Characterise(a *dataset.Agent, cfg Config) error {
	if err := ComputeOdometryError(a); err != nil {
		return err
	}
	if err := ComputeMeasurementError(a); err != nil {
		return err
	}
	if err := RemoveOutliers(a, cfg); err != nil {
		return err
	}
	return ComputeStatistics(a)
}

// ComputeOdometryError fills the agent's odometry error records with
// groundtruth minus synced, re-wrapping the angular channel after
// subtraction. The final synced step is excluded: its groundtruth odometry
// is a copy of the measured value, so its error is identically zero and
// would only bias the statistics.
func ComputeOdometryError(a *dataset.Agent) error {
	if len(a.Groundtruth.Odometry) == 0 {
		return &dataset.PreconditionError{
			Op:       "odometry error computation",
			Requires: fmt.Sprintf("groundtruth odometry for agent %d", a.ID),
		}
	}
	if len(a.Synced.Odometry) != len(a.Groundtruth.Odometry) {
		return &dataset.PreconditionError{
			Op:       "odometry error computation",
			Requires: fmt.Sprintf("synced odometry aligned with groundtruth for agent %d", a.ID),
		}
	}

	n := len(a.Groundtruth.Odometry)
	a.Error.Odometry = make([]dataset.Odometry, 0, n-1)
	for k := 0; k < n-1; k++ {
		gt, synced := a.Groundtruth.Odometry[k], a.Synced.Odometry[k]
		a.Error.Odometry = append(a.Error.Odometry, dataset.Odometry{
			Time:            gt.Time,
			ForwardVelocity: gt.ForwardVelocity - synced.ForwardVelocity,
			AngularVelocity: geom.WrapAngle(gt.AngularVelocity - synced.AngularVelocity),
		})
	}
	return nil
}

// ComputeMeasurementError fills the agent's measurement error records with
// groundtruth minus synced per observation, re-wrapping bearing errors.
// Sentinel observations (unresolved subjects) are skipped; a bundle whose
// observations are all sentinels produces no error bundle at all.
func ComputeMeasurementError(a *dataset.Agent) error {
	if len(a.Groundtruth.Measurements) == 0 {
		return &dataset.PreconditionError{
			Op:       "measurement error computation",
			Requires: fmt.Sprintf("groundtruth measurements for agent %d", a.ID),
		}
	}
	if len(a.Synced.Measurements) != len(a.Groundtruth.Measurements) {
		return &dataset.PreconditionError{
			Op:       "measurement error computation",
			Requires: fmt.Sprintf("synced measurements aligned with groundtruth for agent %d", a.ID),
		}
	}

	a.Error.Measurements = make([]dataset.Measurement, 0, len(a.Groundtruth.Measurements))
	for k := range a.Groundtruth.Measurements {
		gt, synced := &a.Groundtruth.Measurements[k], &a.Synced.Measurements[k]

		errBundle := dataset.Measurement{Time: gt.Time}
		for s := range gt.Subjects {
			if gt.Subjects[s] != synced.Subjects[s] {
				return fmt.Errorf("agent %d: groundtruth subject %d does not match synced subject %d at t=%.3f",
					a.ID, gt.Subjects[s], synced.Subjects[s], gt.Time)
			}
			if dataset.IsInvalidObservation(gt.Ranges[s], gt.Bearings[s]) {
				continue
			}
			errBundle.Append(gt.Subjects[s],
				gt.Ranges[s]-synced.Ranges[s],
				geom.WrapAngle(gt.Bearings[s]-synced.Bearings[s]))
		}
		if errBundle.Len() > 0 {
			a.Error.Measurements = append(a.Error.Measurements, errBundle)
		}
	}
	return nil
}

// RemoveOutliers computes quartiles over the agent's error channels and then
// drops every measurement-error triple whose range or bearing error falls
// outside the configured IQR windows. Bundles that lose all their
// observations are removed entirely. Only the measurement channel is
// filtered: the odometry errors carry no data-association failures.
func RemoveOutliers(a *dataset.Agent, cfg Config) error {
	if err := setQuartiles(a); err != nil {
		return err
	}

	rangeLo := a.RangeError.Q1 - cfg.RangeIQRMultiplier*a.RangeError.IQR
	rangeHi := a.RangeError.Q3 + cfg.RangeIQRMultiplier*a.RangeError.IQR
	bearingLo := a.BearingError.Q1 - cfg.BearingIQRMultiplier*a.BearingError.IQR
	bearingHi := a.BearingError.Q3 + cfg.BearingIQRMultiplier*a.BearingError.IQR

	kept := a.Error.Measurements[:0]
	for i := range a.Error.Measurements {
		bundle := &a.Error.Measurements[i]
		filtered := dataset.Measurement{Time: bundle.Time}
		for s := range bundle.Subjects {
			r, b := bundle.Ranges[s], bundle.Bearings[s]
			if r < rangeLo || r > rangeHi || b < bearingLo || b > bearingHi {
				continue
			}
			filtered.Append(bundle.Subjects[s], r, b)
		}
		if filtered.Len() > 0 {
			kept = append(kept, filtered)
		}
	}
	a.Error.Measurements = kept
	return nil
}

// ComputeStatistics fills in sample mean and variance (Bessel-corrected) for
// every error channel and refreshes the quartiles over the cleaned data.
func ComputeStatistics(a *dataset.Agent) error {
	if err := setQuartiles(a); err != nil {
		return err
	}

	for _, ch := range errorChannels(a) {
		mean, variance := stat.MeanVariance(ch.values, nil)
		ch.stats.Mean = mean
		ch.stats.Variance = variance
	}
	return nil
}

// channel pairs one error channel's flattened values with the statistics
// struct they describe.
type channel struct {
	name   string
	values []float64
	stats  *dataset.ErrorStatistics
}

// errorChannels flattens the agent's error records into the four scalar
// channels. The returned aggregates are fresh slices; nothing here mutates
// shared state.
func errorChannels(a *dataset.Agent) []channel {
	fv := make([]float64, 0, len(a.Error.Odometry))
	av := make([]float64, 0, len(a.Error.Odometry))
	for _, o := range a.Error.Odometry {
		fv = append(fv, o.ForwardVelocity)
		av = append(av, o.AngularVelocity)
	}

	var rng, brg []float64
	for _, m := range a.Error.Measurements {
		rng = append(rng, m.Ranges...)
		brg = append(brg, m.Bearings...)
	}

	return []channel{
		{"forward velocity", fv, &a.ForwardVelocityError},
		{"angular velocity", av, &a.AngularVelocityError},
		{"range", rng, &a.RangeError},
		{"bearing", brg, &a.BearingError},
	}
}

// setQuartiles sorts each error channel and records its median, Q1, Q3 and
// IQR on the agent.
func setQuartiles(a *dataset.Agent) error {
	for _, ch := range errorChannels(a) {
		if len(ch.values) < 2 {
			return &dataset.DegenerateSampleError{AgentID: a.ID, Channel: ch.name, N: len(ch.values)}
		}
		sort.Float64s(ch.values)
		median, q1, q3 := quartiles(ch.values)
		ch.stats.Median = median
		ch.stats.Q1 = q1
		ch.stats.Q3 = q3
		ch.stats.IQR = q3 - q1
	}
	return nil
}

// lowerMedianIndex returns the index of the lower median of n sorted values.
func lowerMedianIndex(n int) int { return (n+1)/2 - 1 }

// quartiles returns the median, first and third quartile of a sorted slice
// using the lower-median convention. For odd n the median element belongs to
// both halves.
func quartiles(sorted []float64) (median, q1, q3 float64) {
	n := len(sorted)
	m := lowerMedianIndex(n)
	median = sorted[m]

	lower := sorted[:m+1]
	upper := sorted[m+1:]
	if n%2 != 0 {
		upper = sorted[m:]
	}
	q1 = lower[lowerMedianIndex(len(lower))]
	q3 = upper[lowerMedianIndex(len(upper))]
	return median, q1, q3
}
