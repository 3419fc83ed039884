// Package parse reads the tab-delimited UTIAS multi-robot localisation
// dataset files into the shared data model. A dataset directory contains
// Barcodes.dat, Landmark_Groundtruth.dat and, per robot N,
// RobotN_Groundtruth.dat, RobotN_Odometry.dat and RobotN_Measurement.dat.
// Lines starting with '#' are comments.
package parse

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fieldrobotics/mrclam/internal/dataset"
)

// Dataset reads a full dataset directory with the given robot and landmark
// counts and returns the populated agents, landmarks and barcode registry.
// Raw streams are populated as read; synced, groundtruth and error sets are
// left empty for the pipeline to fill.
func Dataset(dir string, robots, landmarks int) ([]*dataset.Agent, []dataset.Landmark, *dataset.Registry, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, nil, nil, fmt.Errorf("dataset directory: %w", err)
	}

	barcodes, err := readBarcodes(dir, robots+landmarks)
	if err != nil {
		return nil, nil, nil, err
	}

	lms, err := readLandmarks(dir, landmarks, robots, barcodes)
	if err != nil {
		return nil, nil, nil, err
	}

	agents := make([]*dataset.Agent, robots)
	for i := range agents {
		id := i + 1
		a := &dataset.Agent{ID: id, Barcode: barcodes[id-1]}
		if err := readPoses(dir, a); err != nil {
			return nil, nil, nil, err
		}
		if err := readOdometry(dir, a); err != nil {
			return nil, nil, nil, err
		}
		if err := readMeasurements(dir, a); err != nil {
			return nil, nil, nil, err
		}
		agents[i] = a
	}

	reg, err := dataset.NewRegistry(agents, lms)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse: building registry: %w", err)
	}
	return agents, lms, reg, nil
}

// readBarcodes reads Barcodes.dat: one "id<TAB>barcode" line per entity,
// agents first. The returned slice is indexed by id-1.
func readBarcodes(dir string, total int) ([]int, error) {
	barcodes := make([]int, total)
	err := scanLines(filepath.Join(dir, "Barcodes.dat"), func(fields []string) error {
		if len(fields) < 2 {
			return fmt.Errorf("want 2 fields, got %d", len(fields))
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("bad id %q: %w", fields[0], err)
		}
		if id < 1 || id > total {
			return fmt.Errorf("id %d out of range [1, %d]", id, total)
		}
		barcode, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("bad barcode %q: %w", fields[1], err)
		}
		barcodes[id-1] = barcode
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, b := range barcodes {
		if b == 0 {
			return nil, fmt.Errorf("Barcodes.dat: no barcode for id %d", i+1)
		}
	}
	return barcodes, nil
}

// readLandmarks reads Landmark_Groundtruth.dat. Barcodes must already be
// read: each landmark line carries only the id, and the barcode comes from
// the barcode table.
func readLandmarks(dir string, count, robots int, barcodes []int) ([]dataset.Landmark, error) {
	lms := make([]dataset.Landmark, 0, count)
	err := scanLines(filepath.Join(dir, "Landmark_Groundtruth.dat"), func(fields []string) error {
		if len(fields) < 5 {
			return fmt.Errorf("want 5 fields, got %d", len(fields))
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("bad id %q: %w", fields[0], err)
		}
		if id <= robots || id > len(barcodes) {
			return fmt.Errorf("landmark id %d out of range (%d, %d]", id, robots, len(barcodes))
		}
		vals, err := parseFloats(fields[1:5])
		if err != nil {
			return err
		}
		lms = append(lms, dataset.Landmark{
			ID:      id,
			Barcode: barcodes[id-1],
			X:       vals[0],
			Y:       vals[1],
			XStdDev: vals[2],
			YStdDev: vals[3],
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(lms) != count {
		return nil, fmt.Errorf("Landmark_Groundtruth.dat: want %d landmarks, got %d", count, len(lms))
	}
	return lms, nil
}

// readPoses reads RobotN_Groundtruth.dat into the agent's raw pose stream.
func readPoses(dir string, a *dataset.Agent) error {
	a.Raw.States = nil
	name := fmt.Sprintf("Robot%d_Groundtruth.dat", a.ID)
	return scanLines(filepath.Join(dir, name), func(fields []string) error {
		if len(fields) < 4 {
			return fmt.Errorf("want 4 fields, got %d", len(fields))
		}
		vals, err := parseFloats(fields[:4])
		if err != nil {
			return err
		}
		a.Raw.States = append(a.Raw.States, dataset.State{
			Time: vals[0], X: vals[1], Y: vals[2], Orientation: vals[3],
		})
		return nil
	})
}

// readOdometry reads RobotN_Odometry.dat into the agent's raw odometry
// stream.
func readOdometry(dir string, a *dataset.Agent) error {
	a.Raw.Odometry = nil
	name := fmt.Sprintf("Robot%d_Odometry.dat", a.ID)
	return scanLines(filepath.Join(dir, name), func(fields []string) error {
		if len(fields) < 3 {
			return fmt.Errorf("want 3 fields, got %d", len(fields))
		}
		vals, err := parseFloats(fields[:3])
		if err != nil {
			return err
		}
		a.Raw.Odometry = append(a.Raw.Odometry, dataset.Odometry{
			Time: vals[0], ForwardVelocity: vals[1], AngularVelocity: vals[2],
		})
		return nil
	})
}

// readMeasurements reads RobotN_Measurement.dat into the agent's raw
// measurement stream. Each raw record holds a single observation; grouping
// into per-step bundles happens during synchronization.
func readMeasurements(dir string, a *dataset.Agent) error {
	a.Raw.Measurements = nil
	name := fmt.Sprintf("Robot%d_Measurement.dat", a.ID)
	return scanLines(filepath.Join(dir, name), func(fields []string) error {
		if len(fields) < 4 {
			return fmt.Errorf("want 4 fields, got %d", len(fields))
		}
		t, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return fmt.Errorf("bad time %q: %w", fields[0], err)
		}
		subject, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("bad subject %q: %w", fields[1], err)
		}
		vals, err := parseFloats(fields[2:4])
		if err != nil {
			return err
		}
		m := dataset.Measurement{Time: t}
		m.Append(subject, vals[0], vals[1])
		a.Raw.Measurements = append(a.Raw.Measurements, m)
		return nil
	})
}

// scanLines calls fn with the whitespace-separated fields of every
// non-comment, non-blank line of the file.
func scanLines(path string, fn func(fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(strings.Fields(line)); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return nil
}

func parseFloats(fields []string) ([]float64, error) {
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %w", f, err)
		}
		vals[i] = v
	}
	return vals, nil
}
