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

	"github.com/mlnoga/quadfilter/internal/pool"
	"github.com/mlnoga/quadfilter/internal/raster"
)

// Generates a normalized 1D gaussian kernel of the given odd size, using
// binomial coefficients as approximation. Size 5 yields [1 4 6 4 1]/16
func GaussianKernel1D(size int) ([]float64, error) {
	if size <= 0 || size%2 == 0 {
		return nil, fmt.Errorf("%w: gaussian kernel size %d must be odd and positive", raster.ErrInvalidConfig, size)
	}
	kernel := make([]float64, size)
	kernel[0] = 1
	for n := 1; n < size; n++ { // pascal's triangle, row by row
		for i := n; i > 0; i-- {
			kernel[i] += kernel[i-1]
		}
	}
	sum := 0.0
	for _, k := range kernel {
		sum += k
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel, nil
}

// Returns the 2D gaussian kernel of the given odd size, as outer product of the 1D kernel
func GaussianKernel(size int) (Kernel, error) {
	k1, err := GaussianKernel1D(size)
	if err != nil {
		return Kernel{}, err
	}
	k := Kernel{Width: size, Height: size, Weights: make([]float64, size*size)}
	for y, wy := range k1 {
		for x, wx := range k1 {
			k.Weights[y*size+x] = wy * wx
		}
	}
	return k, nil
}

// Applies a separable gaussian filter of given odd size to the 2D channel. Returns a newly allocated result
func GaussFilter2D(data []float64, width, size int) ([]float64, error) {
	kernel, err := GaussianKernel1D(size)
	if err != nil {
		return nil, err
	}
	tmp := pool.Float64.Get(len(data))
	defer pool.Float64.Put(tmp)
	res := make([]float64, len(data))
	Convolve1DX(tmp, data, width, kernel)
	Convolve1DY(res, tmp, width, kernel)
	return res, nil
}
