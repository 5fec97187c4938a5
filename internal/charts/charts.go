// Package charts draws bar charts of a dataset summary as PNG images.
package charts

import (
	"bytes"
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"chemvis/pkg/contracts/domain"
)

// Default image size
const (
	DefaultWidth  = 6 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

var (
	distributionColor = color.RGBA{R: 54, G: 162, B: 235, A: 255}
	averagesColor     = color.RGBA{R: 255, G: 159, B: 64, A: 255}
)

// TypeDistribution renders the equipment count per type
func TypeDistribution(s domain.DatasetSummary) ([]byte, error) {
	types := make([]string, 0, len(s.TypeDistribution))
	for t := range s.TypeDistribution {
		types = append(types, t)
	}
	sort.Strings(types)

	values := make(plotter.Values, len(types))
	for i, t := range types {
		values[i] = float64(s.TypeDistribution[t])
	}

	p := plot.New()
	p.Title.Text = "Equipment Type Distribution"
	p.Y.Label.Text = "Count"
	p.Y.Min = 0

	return renderBars(p, values, types, distributionColor)
}

// Averages renders the three mean readings side by side
func Averages(s domain.DatasetSummary) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Average Readings"
	p.Y.Label.Text = "Value"

	values := plotter.Values{s.AvgFlowrate, s.AvgPressure, s.AvgTemperature}
	return renderBars(p, values, []string{"Flowrate", "Pressure", "Temperature"}, averagesColor)
}

func renderBars(p *plot.Plot, values plotter.Values, names []string, fill color.Color) ([]byte, error) {
	if len(values) == 0 {
		return nil, domain.ErrEmptyDataset
	}

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return nil, fmt.Errorf("build bar chart: %w", err)
	}
	bars.Color = fill
	bars.LineStyle.Width = vg.Length(0)

	p.Add(bars, plotter.NewGrid())
	p.NominalX(names...)

	w, err := p.WriterTo(DefaultWidth, DefaultHeight, "png")
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}
