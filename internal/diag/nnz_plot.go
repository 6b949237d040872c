// Package diag renders diagnostic charts for a distributed evaluation
// run: the per-rank workload the load distributor produced, so an
// operator can see at a glance whether greedy LPT balanced well.
package diag

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// RankLoad is one rank's workload for the purposes of the chart: its
// rank number and cumulative nonzero count (entry.Entry's NNZ()
// summed over its assigned share).
type RankLoad struct {
	Rank int
	NNZ  int
}

// PlotRankLoad renders a bar chart of per-rank workload to path (PNG).
// It is a diagnostic, not part of the evaluation path itself: a
// coordinator never needs this to drive the distributed loop, but it is
// useful after the fact for checking load balance.
func PlotRankLoad(loads []RankLoad, title, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "rank"
	p.Y.Label.Text = "assigned nonzero count"

	values := make(plotter.Values, len(loads))
	for i, l := range loads {
		values[i] = float64(l.NNZ)
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("diag: build bar chart: %w", err)
	}
	bars.Color = plotutil.Color(0)
	p.Add(bars)

	labels := make([]string, len(loads))
	for i, l := range loads {
		labels[i] = fmt.Sprintf("%d", l.Rank)
	}
	p.NominalX(labels...)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("diag: save plot %q: %w", path, err)
	}
	return nil
}
