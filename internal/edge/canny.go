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

package edge

import (
	"fmt"

	"github.com/mlnoga/quadfilter/internal/conv"
	"github.com/mlnoga/quadfilter/internal/raster"
)

// Output sample values of the edge map
const (
	NoEdge   uint8 = 0
	EdgeMark uint8 = 255
)

// Classification of a pixel after double thresholding
type Class uint8

const (
	ClassNone Class = iota
	ClassWeak
	ClassStrong
)

// Parameters for Canny edge detection. Thresholds apply to the Sobel
// gradient magnitude of the smoothed image
type CannyParams struct {
	Low          float64 `json:"low"          toml:"canny_low_threshold"`
	High         float64 `json:"high"         toml:"canny_high_threshold"`
	GaussianSize int     `json:"gaussianSize" toml:"gaussian_kernel_size"`
}

func DefaultCannyParams() CannyParams {
	return CannyParams{Low: 100, High: 200, GaussianSize: 5}
}

func (p CannyParams) Validate() error {
	if p.Low < 0 || p.High < 0 {
		return fmt.Errorf("%w: canny thresholds %g/%g must not be negative", raster.ErrInvalidConfig, p.Low, p.High)
	}
	if p.Low > p.High {
		return fmt.Errorf("%w: canny low threshold %g exceeds high threshold %g", raster.ErrInvalidConfig, p.Low, p.High)
	}
	if p.GaussianSize <= 0 || p.GaussianSize%2 == 0 {
		return fmt.Errorf("%w: gaussian kernel size %d must be odd and positive", raster.ErrInvalidConfig, p.GaussianSize)
	}
	return nil
}

// Detects edges with the Canny method. Color images are reduced to luma first.
// Returns a single channel image with 255 on edge pixels and 0 elsewhere
func Canny(img *raster.Image, p CannyParams) (*raster.Image, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	plane := img.Data
	if img.Channels != 1 {
		plane = raster.Luma(img).Data
	}
	smoothed, err := conv.GaussFilter2D(conv.ToFloat(plane), img.Width, p.GaussianSize)
	if err != nil {
		return nil, err
	}
	g := conv.Sobel(smoothed, img.Width)
	thin := NonMaxSuppression(g)
	classes := Threshold(thin, p.Low, p.High)

	res := raster.NewImageLike(img, 1)
	Hysteresis(res.Data, classes, img.Width, img.Height)
	return res, nil
}

// Thins the gradient field to ridges one pixel wide. A pixel survives if its magnitude
// is strictly greater than the neighbor on the negative side of its gradient direction,
// and at least as large as the neighbor on the positive side. Neighbors outside the
// image count as zero. Returns the surviving magnitudes, zero elsewhere
func NonMaxSuppression(g *conv.GradientField) []float64 {
	w, h := g.Width, g.Height
	res := make([]float64, len(g.Magnitude))

	at := func(x, y int) float64 {
		if x < 0 || x >= w || y < 0 || y >= h {
			return 0
		}
		return g.Magnitude[y*w+x]
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := g.Magnitude[i]
			dx, dy := g.Direction[i].Offset()
			if m > at(x-dx, y-dy) && m >= at(x+dx, y+dy) {
				res[i] = m
			}
		}
	}
	return res
}

// Classifies magnitudes as strong (>= high), weak (>= low) or none.
// Zero magnitudes are suppressed pixels and never qualify
func Threshold(mag []float64, low, high float64) []Class {
	res := make([]Class, len(mag))
	for i, m := range mag {
		switch {
		case m <= 0:
		case m >= high:
			res[i] = ClassStrong
		case m >= low:
			res[i] = ClassWeak
		}
	}
	return res
}

// Marks all strong pixels, and all weak pixels 8-connected to a strong one
// through other weak pixels, as edges in dest. Breadth first, so each pixel
// enters the queue at most once
func Hysteresis(dest []uint8, classes []Class, width, height int) {
	queue := make([]int, 0, len(classes)/16+1)
	for i, c := range classes {
		if c == ClassStrong {
			dest[i] = EdgeMark
			queue = append(queue, i)
		} else {
			dest[i] = NoEdge
		}
	}

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		x, y := i%width, i/width
		for ny := y - 1; ny <= y+1; ny++ {
			if ny < 0 || ny >= height {
				continue
			}
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || nx >= width {
					continue
				}
				j := ny*width + nx
				if classes[j] == ClassWeak && dest[j] == NoEdge {
					dest[j] = EdgeMark
					queue = append(queue, j)
				}
			}
		}
	}
}

// Counts the edge pixels in an edge map
func CountEdges(edges []uint8) (n int) {
	for _, v := range edges {
		if v == EdgeMark {
			n++
		}
	}
	return n
}
