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

package tone

import (
	"encoding/json"
	"fmt"

	"github.com/mlnoga/quadfilter/internal/enhance"
	"github.com/mlnoga/quadfilter/internal/ops"
	"github.com/mlnoga/quadfilter/internal/raster"
)

// Inverts all samples. Takes one input, produces one output
type OpInvert struct {
	ops.OpUnaryBase
}

var _ ops.Operator = (*OpInvert)(nil) // this type is an Operator
func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpInvertDefault() }) } // register the operator for JSON decoding

func NewOpInvertDefault() *OpInvert { return NewOpInvert(true) }

func NewOpInvert(active bool) *OpInvert {
	op := OpInvert{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "invert", Active: active}},
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpInvert) UnmarshalJSON(data []byte) error {
	type defaults OpInvert
	def := defaults(*NewOpInvertDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpInvert(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpInvert) Apply(img *raster.Image, c *ops.Context) (result *raster.Image, err error) {
	fmt.Fprintf(c.Log, "%d: Inverting %s image\n", img.ID, img.DimensionsToString())
	return raster.Invert(img), nil
}

// Global histogram equalization. Color inputs yield a gray result,
// unless Replicate copies it back into as many channels as the input had.
// Takes one input, produces one output
type OpEqualize struct {
	ops.OpUnaryBase
	Replicate bool `json:"replicate"`
}

var _ ops.Operator = (*OpEqualize)(nil) // this type is an Operator
func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpEqualizeDefault() }) } // register the operator for JSON decoding

func NewOpEqualizeDefault() *OpEqualize { return NewOpEqualize(true, false) }

func NewOpEqualize(active, replicate bool) *OpEqualize {
	op := OpEqualize{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "equalize", Active: active}},
		Replicate:   replicate,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpEqualize) UnmarshalJSON(data []byte) error {
	type defaults OpEqualize
	def := defaults(*NewOpEqualizeDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpEqualize(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

func (op *OpEqualize) Apply(img *raster.Image, c *ops.Context) (result *raster.Image, err error) {
	result = enhance.Equalize(img)
	fmt.Fprintf(c.Log, "%d: Equalized histogram of %s image\n", img.ID, img.DimensionsToString())
	if op.Replicate && img.Channels > 1 {
		result = raster.Expand(result, img.Channels)
	}
	return result, nil
}

// Contrast limited adaptive histogram equalization. Takes one input, produces one output
type OpCLAHE struct {
	ops.OpUnaryBase
	enhance.CLAHEParams
}

var _ ops.Operator = (*OpCLAHE)(nil) // this type is an Operator
func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpCLAHEDefault() }) } // register the operator for JSON decoding

func NewOpCLAHEDefault() *OpCLAHE { return NewOpCLAHE(enhance.DefaultCLAHEParams()) }

func NewOpCLAHE(params enhance.CLAHEParams) *OpCLAHE {
	op := OpCLAHE{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "clahe", Active: true}},
		CLAHEParams: params,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpCLAHE) UnmarshalJSON(data []byte) error {
	type defaults OpCLAHE
	def := defaults(*NewOpCLAHEDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpCLAHE(def)
	op.OpUnaryBase.Apply = op.Apply
	return nil
}

// Checks the parameters before any image is loaded
func (op *OpCLAHE) MakePromises(ins []ops.Promise, c *ops.Context) (outs []ops.Promise, err error) {
	if op.Active {
		if err := op.Validate(); err != nil {
			return nil, err
		}
	}
	return op.OpUnaryBase.MakePromises(ins, c)
}

func (op *OpCLAHE) Apply(img *raster.Image, c *ops.Context) (result *raster.Image, err error) {
	fmt.Fprintf(c.Log, "%d: CLAHE with clip limit %.3g on %dx%d tiles of %s image\n",
		img.ID, op.ClipLimit, op.TileCols, op.TileRows, img.DimensionsToString())
	return enhance.CLAHE(img, op.CLAHEParams)
}
