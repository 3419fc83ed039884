// Package pipeline wires the fixed processing order shared by real and
// simulated data: synchronize (datasets only), derive groundtruth, then
// characterise sensor error. Per-agent work is data-parallel — agents share
// nothing mutable except the read-only landmark and barcode tables — so each
// stage fans out across agents and joins before the next stage starts.
package pipeline

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fieldrobotics/mrclam/internal/dataset"
	"github.com/fieldrobotics/mrclam/internal/derive"
	"github.com/fieldrobotics/mrclam/internal/errstats"
	"github.com/fieldrobotics/mrclam/internal/monitoring"
	"github.com/fieldrobotics/mrclam/internal/timesync"
)

// Options configures one pipeline run.
type Options struct {
	SamplePeriod float64
	Stats        errstats.Config

	// Synchronize resamples the raw streams first. Real datasets need it;
	// simulated data is already generated on the shared clock.
	Synchronize bool
}

// Run processes a complete dataset or simulation output in place.
func Run(agents []*dataset.Agent, landmarks []dataset.Landmark, reg *dataset.Registry, opts Options) error {
	start := time.Now()

	if opts.Synchronize {
		if err := timesync.New(opts.SamplePeriod).Synchronize(agents); err != nil {
			return fmt.Errorf("synchronization: %w", err)
		}
	}

	if err := forEachAgent(agents, func(a *dataset.Agent) error {
		if err := derive.Odometry(a, opts.SamplePeriod); err != nil {
			return err
		}
		return derive.MeasurementsFor(a, agents, landmarks, reg, opts.SamplePeriod)
	}); err != nil {
		return fmt.Errorf("groundtruth derivation: %w", err)
	}

	if err := forEachAgent(agents, func(a *dataset.Agent) error {
		return errstats.Characterise(a, opts.Stats)
	}); err != nil {
		return fmt.Errorf("error statistics: %w", err)
	}

	monitoring.Logf("pipeline: processed %d agents, %d synced samples in %v",
		len(agents), syncedSamples(agents), time.Since(start).Round(time.Millisecond))
	return nil
}

func forEachAgent(agents []*dataset.Agent, fn func(*dataset.Agent) error) error {
	g := new(errgroup.Group)
	for _, a := range agents {
		g.Go(func() error { return fn(a) })
	}
	return g.Wait()
}

func syncedSamples(agents []*dataset.Agent) int {
	if len(agents) == 0 {
		return 0
	}
	return len(agents[0].Groundtruth.States)
}
