// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package stats

import (
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// A histogram with a label, for plotting
type NamedHistogram struct {
	Name      string
	Histogram *Histogram
}

var seriesColors = []drawing.Color{
	chart.ColorBlack, chart.ColorRed, chart.ColorGreen, chart.ColorBlue, chart.ColorOrange,
}

// Renders one line per histogram into a PNG chart
func WriteHistogramChart(w io.Writer, title string, hs []NamedHistogram) error {
	series := []chart.Series{}
	for i, h := range hs {
		ys := make([]float64, Levels)
		for j, c := range h.Histogram {
			ys[j] = float64(c)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    h.Name,
			XValues: levelValues,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: seriesColors[i%len(seriesColors)],
				StrokeWidth: 1.5,
			},
		})
	}

	graph := chart.Chart{
		Title:  title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name: "Level",
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: Levels - 1,
			},
		},
		YAxis: chart.YAxis{
			Name: "Pixels",
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}
