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

package conv

import (
	"fmt"

	"github.com/mlnoga/quadfilter/internal/raster"
)

// A small 2D correlation kernel with odd width and height. Weights are row-major
type Kernel struct {
	Width   int
	Height  int
	Weights []float64
}

// Creates a kernel from rows of weights. All rows must have the same odd length,
// and the number of rows must be odd
func NewKernel(rows [][]float64) (Kernel, error) {
	height := len(rows)
	if height == 0 || height%2 == 0 {
		return Kernel{}, fmt.Errorf("%w: kernel height %d must be odd", raster.ErrInvalidConfig, height)
	}
	width := len(rows[0])
	if width%2 == 0 {
		return Kernel{}, fmt.Errorf("%w: kernel width %d must be odd", raster.ErrInvalidConfig, width)
	}
	k := Kernel{Width: width, Height: height, Weights: make([]float64, 0, width*height)}
	for i, row := range rows {
		if len(row) != width {
			return Kernel{}, fmt.Errorf("%w: kernel row %d has %d weights, want %d", raster.ErrInvalidConfig, i, len(row), width)
		}
		k.Weights = append(k.Weights, row...)
	}
	return k, nil
}

// Must-variant of NewKernel for kernels known to be valid
func mustKernel(rows [][]float64) Kernel {
	k, err := NewKernel(rows)
	if err != nil {
		panic(err)
	}
	return k
}

// Clamps coordinate x into [0, size-1], replicating edge pixels
func clamp(size, x int) int {
	if x < 0 {
		return 0
	}
	if x >= size {
		return size - 1
	}
	return x
}

// Correlates the given 2D channel of given width with the kernel. Out of bounds
// coordinates replicate the nearest edge pixel. Returns a newly allocated result
func Convolve(data []float64, width int, k Kernel) []float64 {
	height := len(data) / width
	res := make([]float64, len(data))
	kx, ky := k.Width/2, k.Height/2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum := 0.0
			for j := -ky; j <= ky; j++ {
				row := clamp(height, y+j) * width
				wrow := (j + ky) * k.Width
				for i := -kx; i <= kx; i++ {
					sum += data[row+clamp(width, x+i)] * k.Weights[wrow+i+kx]
				}
			}
			res[y*width+x] = sum
		}
	}
	return res
}

// Convolves the given 2D channel along the x axis with a 1D kernel, clamping at the borders
func Convolve1DX(res, data []float64, width int, kernel []float64) {
	height := len(data) / width
	k := len(kernel) / 2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum := 0.0
			for i := -k; i <= k; i++ {
				sum += data[y*width+clamp(width, x+i)] * kernel[i+k]
			}
			res[y*width+x] = sum
		}
	}
}

// Convolves the given 2D channel along the y axis with a 1D kernel, clamping at the borders
func Convolve1DY(res, data []float64, width int, kernel []float64) {
	height := len(data) / width
	k := len(kernel) / 2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum := 0.0
			for i := -k; i <= k; i++ {
				sum += data[clamp(height, y+i)*width+x] * kernel[i+k]
			}
			res[y*width+x] = sum
		}
	}
}

// Converts an 8-bit plane to float64 samples
func ToFloat(plane []uint8) []float64 {
	res := make([]float64, len(plane))
	for i, v := range plane {
		res[i] = float64(v)
	}
	return res
}
