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

package raster

import (
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// An RGB image decomposed into CIE L*a*b* (D65). Lightness is quantized
// to 8 bits for histogram based processing, chrominance keeps full precision
type LabPlanes struct {
	Width  int
	Height int
	L      []uint8   // lightness, 0..1 scaled to 0..255
	A      []float64 // a* as returned by go-colorful
	B      []float64 // b* as returned by go-colorful
}

// Converts an RGB image into lightness and chrominance planes
func SplitLab(img *Image) (*LabPlanes, error) {
	if img.Channels != 3 {
		return nil, fmt.Errorf("%d: cannot convert %s image to L*a*b*, need 3 channels", img.ID, img.DimensionsToString())
	}
	size := img.Pixels()
	p := &LabPlanes{
		Width:  img.Width,
		Height: img.Height,
		L:      make([]uint8, size),
		A:      make([]float64, size),
		B:      make([]float64, size),
	}
	r, g, b := img.Plane(0), img.Plane(1), img.Plane(2)
	for i := 0; i < size; i++ {
		col := colorful.Color{R: float64(r[i]) / 255, G: float64(g[i]) / 255, B: float64(b[i]) / 255}
		l, a, bb := col.Lab()
		p.L[i] = ClampUint8(l * 255)
		p.A[i] = a
		p.B[i] = bb
	}
	return p, nil
}

// Recombines the given lightness plane with the chrominance of p into a new RGB image.
// Metadata is taken from meta
func (p *LabPlanes) Merge(meta *Image, l []uint8) (*Image, error) {
	if len(l) != p.Width*p.Height || meta.Width != p.Width || meta.Height != p.Height {
		return nil, fmt.Errorf("%w: lightness plane of %d samples for %dx%d chrominance", ErrDimensionMismatch, len(l), p.Width, p.Height)
	}
	res := NewImageLike(meta, 3)
	r, g, b := res.Plane(0), res.Plane(1), res.Plane(2)
	for i, li := range l {
		col := colorful.Lab(float64(li)/255, p.A[i], p.B[i]).Clamped()
		r[i], g[i], b[i] = col.RGB255()
	}
	return res, nil
}
