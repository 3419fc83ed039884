package geom

import (
	"math"
	"testing"
)

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"pi stays pi", math.Pi, math.Pi},
		{"negative pi wraps up", -math.Pi, math.Pi},
		{"just over pi", math.Pi + 0.1, -math.Pi + 0.1},
		{"just under minus pi", -math.Pi - 0.1, math.Pi - 0.1},
		{"three pi", 3 * math.Pi, math.Pi},
		{"minus three halves pi", -1.5 * math.Pi, 0.5 * math.Pi},
		{"many turns", 10*math.Pi + 0.25, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapAngle(tt.in)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("WrapAngle(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if !(got > -math.Pi && got <= math.Pi) {
				t.Errorf("WrapAngle(%v) = %v, outside (-pi, pi]", tt.in, got)
			}
		})
	}
}

func TestDistance(t *testing.T) {
	if got := Distance(0, 0, 3, 4); got != 5 {
		t.Errorf("Distance(0,0,3,4) = %v, want 5", got)
	}
	if got := Distance(1, 1, 1, 1); got != 0 {
		t.Errorf("Distance of identical points = %v, want 0", got)
	}
}

func TestRangeBearing(t *testing.T) {
	// Subject one metre straight ahead of an observer facing +x.
	rng, bearing := RangeBearing(0, 0, 0, 1, 0)
	if rng != 1 || bearing != 0 {
		t.Errorf("straight ahead: got range %v bearing %v", rng, bearing)
	}

	// Subject directly to the left of an observer facing +x.
	rng, bearing = RangeBearing(0, 0, 0, 0, 2)
	if rng != 2 || math.Abs(bearing-math.Pi/2) > 1e-12 {
		t.Errorf("left: got range %v bearing %v", rng, bearing)
	}

	// Observer heading makes the bearing wrap.
	_, bearing = RangeBearing(0, 0, -3*math.Pi/4, -1, -1)
	if !(bearing > -math.Pi && bearing <= math.Pi) {
		t.Errorf("bearing %v outside (-pi, pi]", bearing)
	}
	if math.Abs(bearing) > 1e-12 {
		t.Errorf("subject along heading should have zero bearing, got %v", bearing)
	}
}
