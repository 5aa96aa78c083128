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

package main

import (
	"fmt"

	"github.com/mlnoga/quadfilter/internal/config"
	"github.com/mlnoga/quadfilter/internal/ops"
	"github.com/mlnoga/quadfilter/internal/ops/detect"
	"github.com/mlnoga/quadfilter/internal/ops/report"
	"github.com/mlnoga/quadfilter/internal/ops/tone"
)

// Result file names of the four filters, without suffix
const (
	stepInverse   = "1_inverse"
	stepContrast  = "2_contrast"
	stepEqualized = "3_equalized"
	stepEdges     = "4_edges"
)

// Montage panel titles, in the order of the steps
var titles = []string{"Inverse Transformation", "Contrast Stretched", "Histogram Equalized", "Edge Detection (Canny)"}

// Builds the operator applied to each input file for the given command.
// The operator takes one input and produces one output
func newPipeline(command string, cfg *config.Config, chart bool) (ops.Operator, error) {
	invert := tone.NewOpInvert(true)
	clahe := tone.NewOpCLAHE(cfg.CLAHE)
	equalize := tone.NewOpEqualize(true, cfg.Output.Replicate)
	canny := detect.NewOpCanny(cfg.Canny, cfg.Output.Replicate)
	saved := func(name string, op ops.Operator) ops.Operator {
		return ops.NewOpSequence(op, ops.NewOpSave(cfg.OutputPattern(name)))
	}

	switch command {
	case "process":
		return ops.NewOpSequence(
			ops.NewOpFanOut(false,
				saved(stepInverse, invert),
				saved(stepContrast, clahe),
				saved(stepEqualized, equalize),
				saved(stepEdges, canny),
			),
			report.NewOpMontage(2, cfg.Output.PanelWidth, titles...),
			ops.NewOpSave(cfg.MontagePattern()),
		), nil
	case "invert":
		return saved(stepInverse, invert), nil
	case "clahe":
		return saved(stepContrast, clahe), nil
	case "equalize":
		return saved(stepEqualized, equalize), nil
	case "canny":
		return saved(stepEdges, canny), nil
	case "stats":
		pattern := ""
		if chart {
			pattern = cfg.Output.Dir + "/%name_histogram.png"
		}
		return report.NewOpStats(pattern), nil
	}
	return nil, fmt.Errorf("unknown command '%s'", command)
}
