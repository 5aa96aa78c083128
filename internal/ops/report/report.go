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

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mlnoga/quadfilter/internal/ops"
	"github.com/mlnoga/quadfilter/internal/raster"
	"github.com/mlnoga/quadfilter/internal/stats"
)

var channelNames = map[int][]string{
	1: {"gray"},
	3: {"red", "green", "blue"},
}

// Logs per-channel statistics, and optionally writes a histogram chart.
// Takes one input, produces one output (the unchanged input)
type OpStats struct {
	ops.OpUnaryBase
	ChartPattern string `json:"chartPattern"` // PNG file name pattern, empty for none
}

var _ ops.Operator = (*OpStats)(nil) // this type is an Operator
func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpStatsDefault() }) } // register the operator for JSON decoding

func NewOpStatsDefault() *OpStats { return NewOpStats("") }

func NewOpStats(chartPattern string) *OpStats {
	op := OpStats{
		OpUnaryBase:  ops.OpUnaryBase{OpBase: ops.OpBase{Type: "stats", Active: true}},
		ChartPattern: chartPattern,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpStats) UnmarshalJSON(data []byte) error {
	type defaults OpStats
	def := defaults(*NewOpStatsDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpStats(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpStats) Apply(img *raster.Image, c *ops.Context) (result *raster.Image, err error) {
	names := channelNames[img.Channels]
	hs := make([]stats.NamedHistogram, img.Channels)
	for ch := 0; ch < img.Channels; ch++ {
		s := stats.NewChannelStats(img.Plane(ch))
		fmt.Fprintf(c.Log, "%d: %-5s %v\n", img.ID, names[ch], s)
		hs[ch] = stats.NamedHistogram{Name: names[ch], Histogram: &s.Histogram}
	}
	if op.ChartPattern == "" {
		return img, nil
	}

	fileName := ops.ExpandFilePattern(op.ChartPattern, img)
	if err := c.CheckPath(fileName); err != nil {
		return nil, fmt.Errorf("%d: %w", img.ID, err)
	}
	if err := os.MkdirAll(filepath.Dir(fileName), 0755); err != nil {
		return nil, fmt.Errorf("%d: %w", img.ID, err)
	}
	f, err := os.Create(fileName)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", img.ID, err)
	}
	defer f.Close()
	title := filepath.Base(img.FileName)
	if err := stats.WriteHistogramChart(f, title, hs); err != nil {
		return nil, fmt.Errorf("%d: Error writing histogram chart %s: %w", img.ID, fileName, err)
	}
	fmt.Fprintf(c.Log, "%d: Wrote histogram chart to %s\n", img.ID, fileName)
	return img, nil
}

// Arranges all inputs side by side in a titled grid. Takes n inputs, produces one output
type OpMontage struct {
	ops.OpBase
	Columns    int      `json:"columns"`    // 0 puts all panels into one row
	PanelWidth int      `json:"panelWidth"` // maximum panel width, 0 for original size
	Titles     []string `json:"titles"`
}

var _ ops.Operator = (*OpMontage)(nil) // this type is an Operator
func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpMontageDefault() }) } // register the operator for JSON decoding

func NewOpMontageDefault() *OpMontage { return NewOpMontage(0, 0) }

func NewOpMontage(columns, panelWidth int, titles ...string) *OpMontage {
	return &OpMontage{
		OpBase:     ops.OpBase{Type: "montage", Active: true},
		Columns:    columns,
		PanelWidth: panelWidth,
		Titles:     titles,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpMontage) UnmarshalJSON(data []byte) error {
	type defaults OpMontage
	def := defaults(*NewOpMontageDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpMontage(def)
	return nil
}

func (op *OpMontage) MakePromises(ins []ops.Promise, c *ops.Context) (outs []ops.Promise, err error) {
	if !op.Active {
		return ins, nil
	}
	if len(ins) == 0 {
		return nil, fmt.Errorf("%s operator without inputs", op.Type)
	}
	if op.Columns < 0 || op.PanelWidth < 0 {
		return nil, fmt.Errorf("%w: montage with %d columns and panel width %d", raster.ErrInvalidConfig, op.Columns, op.PanelWidth)
	}
	out := func() (*raster.Image, error) {
		panels, err := ops.MaterializeAll(ins, c.MaxThreads, false)
		if err != nil {
			return nil, err
		}
		cols := op.Columns
		if cols == 0 {
			cols = len(panels)
		}
		res, err := raster.Montage(panels, op.Titles, cols, op.PanelWidth)
		if err != nil {
			return nil, fmt.Errorf("%d: %w", panels[0].ID, err)
		}
		fmt.Fprintf(c.Log, "%d: Assembled %d panels into %s montage\n", res.ID, len(panels), res.DimensionsToString())
		return res, nil
	}
	return []ops.Promise{out}, nil
}
