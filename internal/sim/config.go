package sim

// Config holds every scalar the simulator needs. DefaultConfig mirrors the
// UTIAS data-collection setup: a 15x8 m arena, forward velocity capped at
// 0.16 m/s, angular velocity at 0.35 rad/s, a 4 m sensing range and a 60
// degree field of view.
type Config struct {
	Robots    int
	Landmarks int
	Steps     int     // odometry samples per robot
	Period    float64 // sample period [s]

	ArenaWidth  float64 // max x-coordinate [m]
	ArenaHeight float64 // max y-coordinate [m]

	MaxForwardVelocity float64 // [m/s]
	MaxAngularVelocity float64 // [rad/s]

	MaxRange float64 // sensing range [m]
	HalfFOV  float64 // half the sensor field of view [rad]

	// One measurement scan per this many odometry steps.
	MeasurementSubrate int

	// Minimum separations enforced during placement [m].
	LandmarkSeparation      float64
	RobotSeparation         float64
	RobotLandmarkSeparation float64

	// Random-walk command shaping.
	WalkMinSteps      int     // shortest command hold
	WalkMaxSteps      int     // longest command hold
	ForwardAdjustment float64 // forward velocity tweak drawn from +- this

	// Per-agent sensor error variances are drawn uniformly from these
	// closed intervals once per run.
	ForwardVelocityVariance [2]float64
	AngularVelocityVariance [2]float64
	RangeVariance           [2]float64
	BearingVariance         [2]float64

	// Landmark positional standard deviations are drawn from this interval.
	LandmarkStdDev [2]float64

	// Placement gives up with an error after this many rejected candidates,
	// instead of spinning forever on an over-constrained arena.
	MaxPlacementAttempts int
}

// DefaultConfig returns the UTIAS-calibrated simulation parameters.
func DefaultConfig() Config {
	return Config{
		Robots:    5,
		Landmarks: 15,
		Steps:     10000,
		Period:    0.02,

		ArenaWidth:  15.0,
		ArenaHeight: 8.0,

		MaxForwardVelocity: 0.16,
		MaxAngularVelocity: 0.35,

		MaxRange: 4.0,
		HalfFOV:  0.52,

		MeasurementSubrate: 5,

		LandmarkSeparation:      2.0,
		RobotSeparation:         1.0,
		RobotLandmarkSeparation: 2.0,

		WalkMinSteps:      20,
		WalkMaxSteps:      500,
		ForwardAdjustment: 0.05,

		ForwardVelocityVariance: [2]float64{0.0007, 0.0016},
		AngularVelocityVariance: [2]float64{0.0183, 0.0399},
		RangeVariance:           [2]float64{0.0162, 0.45},
		BearingVariance:         [2]float64{0.00062, 0.00596},

		LandmarkStdDev: [2]float64{0.00705, 0.02036},

		MaxPlacementAttempts: 1000,
	}
}
