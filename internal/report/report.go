// Package report renders run artefacts: per-channel error distribution plots
// as PNG files and a self-contained HTML report with trajectory, error
// variance and relative-distance charts.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/fieldrobotics/mrclam/internal/dataset"
	"github.com/fieldrobotics/mrclam/internal/geom"
)

// DefaultPDFBinSize is the histogram bin width used for error distribution
// plots when the caller does not override it.
const DefaultPDFBinSize = 0.001

// WriteErrorPDFs writes one PNG per agent and error channel under dir,
// showing the area-normalised distribution of the channel's errors. Each
// histogram is normalised so the bars integrate to one, making runs with
// different sample counts directly comparable.
func WriteErrorPDFs(dir string, agents []*dataset.Agent, binSize float64) error {
	if binSize <= 0 {
		binSize = DefaultPDFBinSize
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	for _, a := range agents {
		channels := []struct {
			name   string
			unit   string
			values []float64
		}{
			{"forward_velocity", "m/s", odometryChannel(a.Error.Odometry, false)},
			{"angular_velocity", "rad/s", odometryChannel(a.Error.Odometry, true)},
			{"range", "m", measurementChannel(a.Error.Measurements, false)},
			{"bearing", "rad", measurementChannel(a.Error.Measurements, true)},
		}
		for _, ch := range channels {
			if len(ch.values) == 0 {
				continue
			}
			name := fmt.Sprintf("robot_%02d_%s_error.png", a.ID, ch.name)
			if err := writeHistogram(filepath.Join(dir, name), a.ID, ch.name, ch.unit, ch.values, binSize); err != nil {
				return fmt.Errorf("agent %d %s: %w", a.ID, ch.name, err)
			}
		}
	}
	return nil
}

func odometryChannel(odometry []dataset.Odometry, angular bool) []float64 {
	values := make([]float64, 0, len(odometry))
	for _, o := range odometry {
		if angular {
			values = append(values, o.AngularVelocity)
		} else {
			values = append(values, o.ForwardVelocity)
		}
	}
	return values
}

func measurementChannel(measurements []dataset.Measurement, bearing bool) []float64 {
	var values []float64
	for _, m := range measurements {
		if bearing {
			values = append(values, m.Bearings...)
		} else {
			values = append(values, m.Ranges...)
		}
	}
	return values
}

func writeHistogram(path string, agentID int, channel, unit string, values []float64, binSize float64) error {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	bins := int(math.Ceil((hi - lo) / binSize))
	if bins < 1 {
		bins = 1
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Robot %d - %s error distribution", agentID, channel)
	p.X.Label.Text = fmt.Sprintf("Error (%s)", unit)
	p.Y.Label.Text = "Probability density"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return fmt.Errorf("build histogram: %w", err)
	}
	h.Normalize(1)
	p.Add(h)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save histogram: %w", err)
	}
	return nil
}

// WriteHTMLReport renders a single HTML page with the groundtruth
// trajectories and landmark map, the per-agent error variances, and the
// pairwise relative distances over time.
func WriteHTMLReport(path string, agents []*dataset.Agent, landmarks []dataset.Landmark) error {
	page := components.NewPage()
	page.PageTitle = "MRCLAM run report"

	page.AddCharts(
		trajectoryChart(agents, landmarks),
		varianceChart(agents),
		relativeDistanceChart(agents, landmarks),
	)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// trajectoryStride thins trajectory scatter series so a 10k-step run does
// not produce a multi-megabyte HTML page.
const trajectoryStride = 25

func trajectoryChart(agents []*dataset.Agent, landmarks []dataset.Landmark) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Groundtruth trajectories"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)"}),
	)

	for _, a := range agents {
		states := a.Groundtruth.States
		if len(states) == 0 {
			states = a.Synced.States
		}
		data := make([]opts.ScatterData, 0, len(states)/trajectoryStride+1)
		for i := 0; i < len(states); i += trajectoryStride {
			data = append(data, opts.ScatterData{Value: []interface{}{states[i].X, states[i].Y}})
		}
		scatter.AddSeries(fmt.Sprintf("robot %d", a.ID), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	}

	lmData := make([]opts.ScatterData, 0, len(landmarks))
	for _, lm := range landmarks {
		lmData = append(lmData, opts.ScatterData{Value: []interface{}{lm.X, lm.Y}})
	}
	scatter.AddSeries("landmarks", lmData,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10, Symbol: "diamond"}))

	return scatter
}

func varianceChart(agents []*dataset.Agent) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Sensor error variance",
			Subtitle: "per agent, after outlier removal",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	labels := make([]string, 0, len(agents))
	fv := make([]opts.BarData, 0, len(agents))
	av := make([]opts.BarData, 0, len(agents))
	rng := make([]opts.BarData, 0, len(agents))
	brg := make([]opts.BarData, 0, len(agents))
	for _, a := range agents {
		labels = append(labels, fmt.Sprintf("robot %d", a.ID))
		fv = append(fv, opts.BarData{Value: a.ForwardVelocityError.Variance})
		av = append(av, opts.BarData{Value: a.AngularVelocityError.Variance})
		rng = append(rng, opts.BarData{Value: a.RangeError.Variance})
		brg = append(brg, opts.BarData{Value: a.BearingError.Variance})
	}

	bar.SetXAxis(labels).
		AddSeries("forward velocity", fv).
		AddSeries("angular velocity", av).
		AddSeries("range", rng).
		AddSeries("bearing", brg)
	return bar
}

func relativeDistanceChart(agents []*dataset.Agent, landmarks []dataset.Landmark) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Relative distances"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Distance (m)"}),
	)

	if len(agents) == 0 {
		return line
	}

	// All groundtruth streams share the synchronized clock, so pair series
	// can be zipped by index up to the shortest stream.
	n := len(agents[0].Groundtruth.States)
	for _, a := range agents[1:] {
		if len(a.Groundtruth.States) < n {
			n = len(a.Groundtruth.States)
		}
	}
	if n == 0 {
		return line
	}

	times := make([]string, 0, n/trajectoryStride+1)
	for k := 0; k < n; k += trajectoryStride {
		times = append(times, fmt.Sprintf("%.2f", agents[0].Groundtruth.States[k].Time))
	}
	line.SetXAxis(times)

	for i := 0; i < len(agents); i++ {
		for j := i + 1; j < len(agents); j++ {
			si, sj := agents[i].Groundtruth.States, agents[j].Groundtruth.States
			data := make([]opts.LineData, 0, n/trajectoryStride+1)
			for k := 0; k < n; k += trajectoryStride {
				d := geom.Distance(si[k].X, si[k].Y, sj[k].X, sj[k].Y)
				data = append(data, opts.LineData{Value: d})
			}
			line.AddSeries(fmt.Sprintf("robots %d-%d", agents[i].ID, agents[j].ID), data)
		}
	}

	// Landmarks are static, so one series per landmark against the first
	// robot traces how closely it approaches each of them.
	ego := agents[0].Groundtruth.States
	for _, lm := range landmarks {
		data := make([]opts.LineData, 0, n/trajectoryStride+1)
		for k := 0; k < n; k += trajectoryStride {
			d := geom.Distance(ego[k].X, ego[k].Y, lm.X, lm.Y)
			data = append(data, opts.LineData{Value: d})
		}
		line.AddSeries(fmt.Sprintf("robot %d-landmark %d", agents[0].ID, lm.ID), data)
	}
	return line
}
