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
	"errors"
	"math"
	"testing"

	"github.com/mlnoga/quadfilter/internal/raster"
)

func TestGaussianKernel1D(t *testing.T) {
	epsilon := 1e-12
	tcs := []struct {
		Size   int
		Kernel []float64
	}{
		{1, []float64{1}},
		{3, []float64{0.25, 0.5, 0.25}},
		{5, []float64{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}},
		{7, []float64{1.0 / 64, 6.0 / 64, 15.0 / 64, 20.0 / 64, 15.0 / 64, 6.0 / 64, 1.0 / 64}},
	}
	for _, tc := range tcs {
		kernel, err := GaussianKernel1D(tc.Size)
		if err != nil {
			t.Fatalf("size=%d err=%v", tc.Size, err)
		}
		sum := 0.0
		for i, k := range kernel {
			if math.Abs(k-tc.Kernel[i]) > epsilon {
				t.Errorf("size=%d k[%d]=%f; want %f", tc.Size, i, k, tc.Kernel[i])
			}
			sum += k
		}
		if math.Abs(sum-1) > epsilon {
			t.Errorf("size=%d sum=%f; want 1", tc.Size, sum)
		}
	}

	for _, size := range []int{0, -3, 2, 6} {
		if _, err := GaussianKernel(size); !errors.Is(err, raster.ErrInvalidConfig) {
			t.Errorf("GaussianKernel(%d) err=%v; want %v", size, err, raster.ErrInvalidConfig)
		}
	}
}

func TestNewKernelRejectsEvenShapes(t *testing.T) {
	bad := [][][]float64{
		{},
		{{1, 2}},
		{{1}, {2}},
		{{1, 2, 3}, {1, 2}, {1, 2, 3}},
	}
	for i, rows := range bad {
		if _, err := NewKernel(rows); !errors.Is(err, raster.ErrInvalidConfig) {
			t.Errorf("case %d: err=%v; want %v", i, err, raster.ErrInvalidConfig)
		}
	}
}

func TestConvolveReplicatesBorders(t *testing.T) {
	// a constant image stays constant under any normalized kernel, also at the borders
	width, height := 7, 5
	data := make([]float64, width*height)
	for i := range data {
		data[i] = 200
	}
	k, _ := GaussianKernel(5)
	res := Convolve(data, width, k)
	for i, v := range res {
		if math.Abs(v-200) > 1e-9 {
			t.Errorf("res[%d]=%f; want 200", i, v)
		}
	}

	// box sum at the top left corner counts the corner pixel four times
	data = []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	box, _ := NewKernel([][]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}})
	res = Convolve(data, 3, box)
	if want := 4*1 + 2*2 + 2*4 + 5.0; res[0] != want {
		t.Errorf("res[0]=%f; want %f", res[0], want)
	}
	if want := 45.0; res[4] != want {
		t.Errorf("res[4]=%f; want %f", res[4], want)
	}
}

func TestGaussFilterMatchesFullKernel(t *testing.T) {
	width := 9
	data := make([]float64, width*6)
	for i := range data {
		data[i] = float64((i * 37) % 256)
	}
	sep, err := GaussFilter2D(data, width, 5)
	if err != nil {
		t.Fatal(err)
	}
	k, _ := GaussianKernel(5)
	full := Convolve(data, width, k)
	for i := range full {
		if math.Abs(full[i]-sep[i]) > 1e-9 {
			t.Errorf("separable[%d]=%f; want %f", i, sep[i], full[i])
		}
	}
}

func TestSobelDirections(t *testing.T) {
	width, height := 6, 6
	vertical := make([]float64, width*height)   // left dark, right bright
	horizontal := make([]float64, width*height) // top dark, bottom bright
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x >= width/2 {
				vertical[y*width+x] = 100
			}
			if y >= height/2 {
				horizontal[y*width+x] = 100
			}
		}
	}

	g := Sobel(vertical, width)
	i := 2*width + width/2 - 1
	if g.Gx[i] != 400 || g.Gy[i] != 0 || g.Magnitude[i] != 400 || g.Direction[i] != Dir0 {
		t.Errorf("vertical edge gx=%f gy=%f mag=%f dir=%v; want 400 0 400 0", g.Gx[i], g.Gy[i], g.Magnitude[i], g.Direction[i])
	}
	if g.Magnitude[0] != 0 {
		t.Errorf("flat region magnitude=%f; want 0", g.Magnitude[0])
	}

	g = Sobel(horizontal, width)
	i = (height/2-1)*width + 2
	if g.Gy[i] != 400 || g.Gx[i] != 0 || g.Direction[i] != Dir90 {
		t.Errorf("horizontal edge gx=%f gy=%f dir=%v; want 0 400 90", g.Gx[i], g.Gy[i], g.Direction[i])
	}
}

func TestQuantizeDirection(t *testing.T) {
	tcs := []struct {
		gx, gy float64
		want   Direction
	}{
		{1, 0, Dir0}, {-1, 0, Dir0}, {1, 0.3, Dir0}, {1, -0.3, Dir0},
		{1, 1, Dir45}, {-1, -1, Dir45},
		{0, 1, Dir90}, {0, -1, Dir90}, {0.2, 1, Dir90},
		{-1, 1, Dir135}, {1, -1, Dir135},
		{0, 0, Dir0},
	}
	for _, tc := range tcs {
		if got := QuantizeDirection(tc.gx, tc.gy); got != tc.want {
			t.Errorf("QuantizeDirection(%g,%g)=%v; want %v", tc.gx, tc.gy, got, tc.want)
		}
	}
}
