// Package dataset defines the shared data model for multi-robot localisation
// data: agents with their raw, synced, groundtruth and error record sets,
// landmarks, and the barcode identity registry that ties them together.
package dataset

import "math"

// State is a single pose sample: position and heading at a point in time.
// Orientation is in radians, wrapped to (-pi, pi].
type State struct {
	Time        float64
	X           float64
	Y           float64
	Orientation float64
}

// Odometry is a single velocity sample.
type Odometry struct {
	Time            float64
	ForwardVelocity float64
	AngularVelocity float64
}

// Measurement is a bundle of range/bearing observations sharing one
// timestamp. Subjects, Ranges and Bearings are parallel slices: element i of
// each describes one observation of the agent or landmark whose barcode is
// Subjects[i].
type Measurement struct {
	Time     float64
	Subjects []int
	Ranges   []float64
	Bearings []float64
}

// Sentinel values marking a groundtruth observation whose subject barcode
// could not be resolved. Downstream error computation skips these pairs.
const (
	InvalidRange   = -1.0
	InvalidBearing = 2 * math.Pi
)

// Append adds one observation triple to the bundle.
func (m *Measurement) Append(subject int, rng, bearing float64) {
	m.Subjects = append(m.Subjects, subject)
	m.Ranges = append(m.Ranges, rng)
	m.Bearings = append(m.Bearings, bearing)
}

// Len returns the number of observations in the bundle.
func (m *Measurement) Len() int { return len(m.Subjects) }

// Clone returns a deep copy of the bundle. Raw bundles are cloned rather than
// aliased when regrouping so that synced data never shares backing arrays
// with raw data.
func (m *Measurement) Clone() Measurement {
	c := Measurement{
		Time:     m.Time,
		Subjects: make([]int, len(m.Subjects)),
		Ranges:   make([]float64, len(m.Ranges)),
		Bearings: make([]float64, len(m.Bearings)),
	}
	copy(c.Subjects, m.Subjects)
	copy(c.Ranges, m.Ranges)
	copy(c.Bearings, m.Bearings)
	return c
}

// IsInvalidObservation reports whether a (range, bearing) pair is the
// unresolved-identity sentinel.
func IsInvalidObservation(rng, bearing float64) bool {
	return rng == InvalidRange && bearing == InvalidBearing
}

// RecordSet groups the three parallel streams of one agent. Within the
// synced, groundtruth and error sets all sequences share the synchronized
// clock; the raw set may carry distinct lengths and rates per stream.
type RecordSet struct {
	States       []State
	Odometry     []Odometry
	Measurements []Measurement
}

// Clone returns a deep copy of the record set.
func (rs *RecordSet) Clone() *RecordSet {
	c := &RecordSet{
		States:       make([]State, len(rs.States)),
		Odometry:     make([]Odometry, len(rs.Odometry)),
		Measurements: make([]Measurement, 0, len(rs.Measurements)),
	}
	copy(c.States, rs.States)
	copy(c.Odometry, rs.Odometry)
	for i := range rs.Measurements {
		c.Measurements = append(c.Measurements, rs.Measurements[i].Clone())
	}
	return c
}

// ErrorStatistics describes one scalar error channel.
type ErrorStatistics struct {
	Mean     float64
	Variance float64
	Median   float64
	Q1       float64
	Q3       float64
	IQR      float64
}

// Agent is one tracked robot: a stable numeric ID, the barcode other agents
// read to identify it, and its four record sets.
type Agent struct {
	ID      int
	Barcode int

	Raw         RecordSet
	Synced      RecordSet
	Groundtruth RecordSet
	Error       RecordSet

	ForwardVelocityError ErrorStatistics
	AngularVelocityError ErrorStatistics
	RangeError           ErrorStatistics
	BearingError         ErrorStatistics
}

// Landmark is a fixed feature with a surveyed position and the standard
// deviations of its positioning error.
type Landmark struct {
	ID      int
	Barcode int
	X       float64
	Y       float64
	XStdDev float64
	YStdDev float64
}
