package squid

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// DumpHistogram renders a numerical model row's quantized weight vector as
// a PNG bar chart at path, a diagnostic for inspecting whether the learned
// histogram actually tracks the training distribution. It is never called
// by the compress/decompress path; it exists for offline model inspection.
func DumpHistogram(m *NumericalModel, rowIdx int, path string) error {
	if rowIdx < 0 || rowIdx >= len(m.rows) {
		return fmt.Errorf("squid: row %d out of range", rowIdx)
	}
	weights := m.rows[rowIdx].weights
	if weights == nil {
		return fmt.Errorf("squid: row %d has no finalized weights", rowIdx)
	}

	values := make(plotter.Values, len(weights))
	for i, w := range weights {
		values[i] = float64(w)
	}

	p := plot.New()
	p.Title.Text = "Quantized bin weights"
	p.Y.Label.Text = "weight / 65536"

	bars, err := plotter.NewBarChart(values, vg.Points(1))
	if err != nil {
		return fmt.Errorf("squid: build histogram bar chart: %w", err)
	}
	p.Add(bars)

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
