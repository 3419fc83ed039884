// Package sim procedurally generates multi-agent localisation data in the
// same data model the dataset extractor produces: groundtruth trajectories
// from random-walk velocity commands, range/bearing observations under
// range and field-of-view limits, and synced records formed by adding
// zero-mean Gaussian sensor noise calibrated per agent.
package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/fieldrobotics/mrclam/internal/dataset"
	"github.com/fieldrobotics/mrclam/internal/geom"
)

// Simulator owns the agents and landmarks it populates. Construct one per
// run; Run hands the populated store back to the caller.
type Simulator struct {
	cfg Config
	rng *rand.Rand

	agents    []*dataset.Agent
	landmarks []dataset.Landmark
}

// New returns a Simulator seeded deterministically. Two simulators built
// with the same config and seed produce identical runs.
func New(cfg Config, seed int64) *Simulator {
	return &Simulator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Run executes the whole simulation and returns the populated agents,
// landmarks and barcode registry.
func (s *Simulator) Run() ([]*dataset.Agent, []dataset.Landmark, *dataset.Registry, error) {
	if s.cfg.Robots <= 0 || s.cfg.Steps < 2 || s.cfg.Period <= 0 {
		return nil, nil, nil, &dataset.PreconditionError{
			Op:       "simulation",
			Requires: "a positive robot count, at least two steps and a positive sample period",
		}
	}

	s.assignIdentities()
	s.drawNoiseProfiles()
	if err := s.placeLandmarks(); err != nil {
		return nil, nil, nil, err
	}
	if err := s.placeInitialPoses(); err != nil {
		return nil, nil, nil, err
	}
	if err := s.generateTrajectories(); err != nil {
		return nil, nil, nil, err
	}
	s.generateMeasurements()
	if err := s.injectNoise(); err != nil {
		return nil, nil, nil, err
	}

	reg, err := dataset.NewRegistry(s.agents, s.landmarks)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sim: building registry: %w", err)
	}
	return s.agents, s.landmarks, reg, nil
}

// assignIdentities creates the agents and landmarks and gives every entity
// its ID and barcode. Simulated barcodes equal the IDs; the indirection only
// exists for compatibility with the real dataset's barcode tables.
func (s *Simulator) assignIdentities() {
	s.agents = make([]*dataset.Agent, s.cfg.Robots)
	for i := range s.agents {
		id := i + 1
		s.agents[i] = &dataset.Agent{ID: id, Barcode: id}
	}

	s.landmarks = make([]dataset.Landmark, s.cfg.Landmarks)
	for i := range s.landmarks {
		id := s.cfg.Robots + i + 1
		s.landmarks[i] = dataset.Landmark{ID: id, Barcode: id}
	}
}

// drawNoiseProfiles draws each agent's sensor error variances and each
// landmark's positional standard deviations, once per run.
func (s *Simulator) drawNoiseProfiles() {
	for _, a := range s.agents {
		a.ForwardVelocityError.Variance = s.uniform(s.cfg.ForwardVelocityVariance)
		a.AngularVelocityError.Variance = s.uniform(s.cfg.AngularVelocityVariance)
		a.RangeError.Variance = s.uniform(s.cfg.RangeVariance)
		a.BearingError.Variance = s.uniform(s.cfg.BearingVariance)
	}
	for i := range s.landmarks {
		s.landmarks[i].XStdDev = s.uniform(s.cfg.LandmarkStdDev)
		s.landmarks[i].YStdDev = s.uniform(s.cfg.LandmarkStdDev)
	}
}

// placeLandmarks samples landmark positions uniformly inside the arena with
// a half-metre wall buffer, rejecting candidates closer than the configured
// separation to an already placed landmark.
func (s *Simulator) placeLandmarks() error {
	for i := range s.landmarks {
		placed := false
		for attempt := 0; attempt < s.cfg.MaxPlacementAttempts; attempt++ {
			x := s.uniformRange(0.5, s.cfg.ArenaWidth-0.5)
			y := s.uniformRange(0.5, s.cfg.ArenaHeight-0.5)
			if s.tooCloseToLandmark(x, y, i, s.cfg.LandmarkSeparation) {
				continue
			}
			s.landmarks[i].X = x
			s.landmarks[i].Y = y
			placed = true
			break
		}
		if !placed {
			return fmt.Errorf("sim: could not place landmark %d after %d attempts: arena too constrained",
				s.landmarks[i].ID, s.cfg.MaxPlacementAttempts)
		}
	}
	return nil
}

// placeInitialPoses samples each robot's starting pose with a one-metre wall
// buffer, keeping robots apart from each other and from every landmark.
func (s *Simulator) placeInitialPoses() error {
	for i, a := range s.agents {
		placed := false
		for attempt := 0; attempt < s.cfg.MaxPlacementAttempts; attempt++ {
			x := s.uniformRange(1, s.cfg.ArenaWidth-1)
			y := s.uniformRange(1, s.cfg.ArenaHeight-1)
			if s.tooCloseToLandmark(x, y, len(s.landmarks), s.cfg.RobotLandmarkSeparation) {
				continue
			}
			if s.tooCloseToRobot(x, y, i, s.cfg.RobotSeparation) {
				continue
			}
			a.Groundtruth.States = []dataset.State{{
				Time:        0,
				X:           x,
				Y:           y,
				Orientation: s.uniformRange(-math.Pi, math.Pi),
			}}
			placed = true
			break
		}
		if !placed {
			return fmt.Errorf("sim: could not place robot %d after %d attempts: arena too constrained",
				a.ID, s.cfg.MaxPlacementAttempts)
		}
	}
	return nil
}

func (s *Simulator) tooCloseToLandmark(x, y float64, n int, sep float64) bool {
	for j := 0; j < n && j < len(s.landmarks); j++ {
		if geom.Distance(x, y, s.landmarks[j].X, s.landmarks[j].Y) < sep {
			return true
		}
	}
	return false
}

func (s *Simulator) tooCloseToRobot(x, y float64, n int, sep float64) bool {
	for j := 0; j < n; j++ {
		start := s.agents[j].Groundtruth.States[0]
		if geom.Distance(x, y, start.X, start.Y) < sep {
			return true
		}
	}
	return false
}

// generateTrajectories produces each robot's groundtruth odometry commands
// and the pose sequence they induce. Commands follow a random walk: a drawn
// velocity adjustment is held for a random number of steps, then redrawn.
// Near the arena boundary the angular command is overridden by a
// proportional steering term that turns the robot back toward the centre.
// Velocities are clamped to the physical limits at every step; robots
// cannot reverse.
func (s *Simulator) generateTrajectories() error {
	centreX, centreY := s.cfg.ArenaWidth/2, s.cfg.ArenaHeight/2

	for _, a := range s.agents {
		if len(a.Groundtruth.States) == 0 {
			return &dataset.PreconditionError{
				Op:       "trajectory generation",
				Requires: fmt.Sprintf("an initial pose for robot %d (place initial poses first)", a.ID),
			}
		}

		a.Groundtruth.Odometry = make([]dataset.Odometry, 0, s.cfg.Steps)
		a.Groundtruth.Odometry = append(a.Groundtruth.Odometry, dataset.Odometry{
			Time:            0,
			ForwardVelocity: s.uniformRange(s.cfg.MaxForwardVelocity/2, s.cfg.MaxForwardVelocity),
		})
		a.Groundtruth.States = append(a.Groundtruth.States,
			s.advance(a.Groundtruth.States[0], a.Groundtruth.Odometry[0], 1))

		hold := s.walkDuration()
		angular := 0.0
		for k := 1; k < s.cfg.Steps; k++ {
			forwardAdjustment := 0.0
			cur := a.Groundtruth.States[k]

			if cur.X < 1 || cur.X > s.cfg.ArenaWidth-1 || cur.Y < 1 || cur.Y > s.cfg.ArenaHeight-1 {
				// Steer back toward the centre, proportionally to how far
				// off the heading is.
				bearingToCentre := geom.WrapAngle(
					math.Atan2(centreY-cur.Y, centreX-cur.X) - cur.Orientation)
				angular = bearingToCentre / (math.Pi / s.cfg.MaxAngularVelocity)
			} else if k%hold == 0 {
				forwardAdjustment = s.uniformRange(-s.cfg.ForwardAdjustment, s.cfg.ForwardAdjustment)
				angular = s.uniformRange(-s.cfg.MaxAngularVelocity, s.cfg.MaxAngularVelocity)
				hold = s.walkDuration()
			}

			v := clamp(a.Groundtruth.Odometry[k-1].ForwardVelocity+forwardAdjustment,
				0, s.cfg.MaxForwardVelocity)
			w := clamp(angular, -s.cfg.MaxAngularVelocity, s.cfg.MaxAngularVelocity)

			cmd := dataset.Odometry{
				Time:            float64(k) * s.cfg.Period,
				ForwardVelocity: v,
				AngularVelocity: w,
			}
			a.Groundtruth.Odometry = append(a.Groundtruth.Odometry, cmd)

			// Keep pose and odometry the same length.
			if len(a.Groundtruth.States) < s.cfg.Steps {
				a.Groundtruth.States = append(a.Groundtruth.States, s.advance(cur, cmd, k+1))
			}
		}
	}
	return nil
}

// advance applies one unicycle kinematic step to a pose.
func (s *Simulator) advance(from dataset.State, cmd dataset.Odometry, step int) dataset.State {
	return dataset.State{
		Time:        float64(step) * s.cfg.Period,
		X:           from.X + cmd.ForwardVelocity*s.cfg.Period*math.Cos(from.Orientation),
		Y:           from.Y + cmd.ForwardVelocity*s.cfg.Period*math.Sin(from.Orientation),
		Orientation: geom.WrapAngle(from.Orientation + cmd.AngularVelocity*s.cfg.Period),
	}
}

// generateMeasurements computes, at the measurement sub-rate, the truth
// range/bearing from every robot to every other robot and landmark, keeping
// only observations within the sensing range and field of view. Accepted
// observations for one observer and timestep form one bundle; observers
// that see nothing produce no bundle.
func (s *Simulator) generateMeasurements() {
	for k := 0; k < s.cfg.Steps; k++ {
		if k%s.cfg.MeasurementSubrate != 0 {
			continue
		}

		for _, observer := range s.agents {
			pose := observer.Groundtruth.States[k]
			bundle := dataset.Measurement{Time: pose.Time}

			for _, subject := range s.agents {
				if subject.ID == observer.ID {
					continue
				}
				target := subject.Groundtruth.States[k]
				s.observe(&bundle, pose, subject.Barcode, target.X, target.Y)
			}
			for _, lm := range s.landmarks {
				s.observe(&bundle, pose, lm.Barcode, lm.X, lm.Y)
			}

			if bundle.Len() > 0 {
				observer.Groundtruth.Measurements = append(observer.Groundtruth.Measurements, bundle)
			}
		}
	}
}

// observe appends one observation to the bundle if the subject is within
// sensing range and field of view.
func (s *Simulator) observe(bundle *dataset.Measurement, pose dataset.State, barcode int, sx, sy float64) {
	rng, bearing := geom.RangeBearing(pose.X, pose.Y, pose.Orientation, sx, sy)
	if rng > s.cfg.MaxRange || math.Abs(bearing) > s.cfg.HalfFOV {
		return
	}
	bundle.Append(barcode, rng, bearing)
}

// injectNoise builds the synced record sets: every groundtruth odometry and
// measurement value plus zero-mean Gaussian noise with the agent's drawn
// variance.
func (s *Simulator) injectNoise() error {
	for _, a := range s.agents {
		if a.ForwardVelocityError.Variance == 0 || a.AngularVelocityError.Variance == 0 ||
			a.RangeError.Variance == 0 || a.BearingError.Variance == 0 {
			return &dataset.PreconditionError{
				Op:       "noise injection",
				Requires: fmt.Sprintf("drawn error variances for robot %d (draw noise profiles first)", a.ID),
			}
		}

		fvStdDev := math.Sqrt(a.ForwardVelocityError.Variance)
		avStdDev := math.Sqrt(a.AngularVelocityError.Variance)
		a.Synced.Odometry = make([]dataset.Odometry, 0, len(a.Groundtruth.Odometry))
		for _, o := range a.Groundtruth.Odometry {
			a.Synced.Odometry = append(a.Synced.Odometry, dataset.Odometry{
				Time:            o.Time,
				ForwardVelocity: o.ForwardVelocity + s.rng.NormFloat64()*fvStdDev,
				AngularVelocity: o.AngularVelocity + s.rng.NormFloat64()*avStdDev,
			})
		}

		rngStdDev := math.Sqrt(a.RangeError.Variance)
		brgStdDev := math.Sqrt(a.BearingError.Variance)
		a.Synced.Measurements = make([]dataset.Measurement, 0, len(a.Groundtruth.Measurements))
		for i := range a.Groundtruth.Measurements {
			noisy := a.Groundtruth.Measurements[i].Clone()
			for j := range noisy.Ranges {
				noisy.Ranges[j] += s.rng.NormFloat64() * rngStdDev
				noisy.Bearings[j] += s.rng.NormFloat64() * brgStdDev
			}
			a.Synced.Measurements = append(a.Synced.Measurements, noisy)
		}
	}
	return nil
}

func (s *Simulator) walkDuration() int {
	return s.cfg.WalkMinSteps + s.rng.Intn(s.cfg.WalkMaxSteps-s.cfg.WalkMinSteps+1)
}

func (s *Simulator) uniform(r [2]float64) float64 {
	return s.uniformRange(r[0], r[1])
}

func (s *Simulator) uniformRange(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
