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

package detect

import (
	"encoding/json"
	"fmt"

	"github.com/mlnoga/quadfilter/internal/edge"
	"github.com/mlnoga/quadfilter/internal/ops"
	"github.com/mlnoga/quadfilter/internal/raster"
)

// Canny edge detection. Produces a gray edge map, unless Replicate copies
// it into as many channels as the input had. Takes one input, produces one output
type OpCanny struct {
	ops.OpUnaryBase
	edge.CannyParams
	Replicate bool `json:"replicate"`
}

var _ ops.Operator = (*OpCanny)(nil) // this type is an Operator
func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpCannyDefault() }) } // register the operator for JSON decoding

func NewOpCannyDefault() *OpCanny { return NewOpCanny(edge.DefaultCannyParams(), false) }

func NewOpCanny(params edge.CannyParams, replicate bool) *OpCanny {
	op := OpCanny{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "canny", Active: true}},
		CannyParams: params,
		Replicate:   replicate,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpCanny) UnmarshalJSON(data []byte) error {
	type defaults OpCanny
	def := defaults(*NewOpCannyDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpCanny(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

// Checks the parameters before any image is loaded
func (op *OpCanny) MakePromises(ins []ops.Promise, c *ops.Context) (outs []ops.Promise, err error) {
	if op.Active {
		if err := op.Validate(); err != nil {
			return nil, err
		}
	}
	return op.OpUnaryBase.MakePromises(ins, c)
}

func (op *OpCanny) Apply(img *raster.Image, c *ops.Context) (result *raster.Image, err error) {
	result, err = edge.Canny(img, op.CannyParams)
	if err != nil {
		return nil, err
	}
	n := edge.CountEdges(result.Data)
	fmt.Fprintf(c.Log, "%d: Canny with thresholds %.4g/%.4g and gaussian %d found %d edge pixels (%.2f%%)\n",
		img.ID, op.Low, op.High, op.GaussianSize, n, 100*float64(n)/float64(result.Pixels()))
	if op.Replicate && img.Channels > 1 {
		result = raster.Expand(result, img.Channels)
	}
	return result, nil
}
