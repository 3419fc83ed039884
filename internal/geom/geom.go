// Package geom holds the small amount of planar geometry shared by the
// synchronization engine, the groundtruth derivation and the simulator.
package geom

import "math"

// WrapAngle normalises an angle in radians to the interval (-pi, pi].
func WrapAngle(theta float64) float64 {
	for theta > math.Pi {
		theta -= 2 * math.Pi
	}
	for theta <= -math.Pi {
		theta += 2 * math.Pi
	}
	return theta
}

// Distance returns the Euclidean distance between two planar points.
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// RangeBearing returns the range and bearing of a subject at (sx, sy) as seen
// by an observer at (ox, oy) with heading theta. The bearing is relative to
// the observer's heading and wrapped to (-pi, pi].
func RangeBearing(ox, oy, theta, sx, sy float64) (rng, bearing float64) {
	dx := sx - ox
	dy := sy - oy
	return math.Hypot(dx, dy), WrapAngle(math.Atan2(dy, dx) - theta)
}
