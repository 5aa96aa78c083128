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
	"math"
)

// Gradient direction quantized to one of four compass bins. The bin names the
// angle of the gradient vector in image coordinates, with y pointing down
type Direction uint8

const (
	Dir0   Direction = iota // horizontal gradient, vertical edge
	Dir45                   // gradient towards +x,+y
	Dir90                   // vertical gradient, horizontal edge
	Dir135                  // gradient towards -x,+y
)

var sobelX = mustKernel([][]float64{
	{-1, 0, 1},
	{-2, 0, 2},
	{-1, 0, 1},
})

var sobelY = mustKernel([][]float64{
	{-1, -2, -1},
	{0, 0, 0},
	{1, 2, 1},
})

// Horizontal and vertical derivatives of a channel, with derived magnitude and quantized direction
type GradientField struct {
	Width     int
	Height    int
	Gx        []float64
	Gy        []float64
	Magnitude []float64
	Direction []Direction
}

// Computes the Sobel gradient field of the given 2D channel
func Sobel(data []float64, width int) *GradientField {
	gx := Convolve(data, width, sobelX)
	gy := Convolve(data, width, sobelY)
	g := &GradientField{
		Width:     width,
		Height:    len(data) / width,
		Gx:        gx,
		Gy:        gy,
		Magnitude: make([]float64, len(data)),
		Direction: make([]Direction, len(data)),
	}
	for i := range data {
		g.Magnitude[i] = math.Sqrt(gx[i]*gx[i] + gy[i]*gy[i])
		g.Direction[i] = QuantizeDirection(gx[i], gy[i])
	}
	return g
}

// Maps a gradient vector onto the nearest of the four direction bins
func QuantizeDirection(gx, gy float64) Direction {
	angle := math.Atan2(gy, gx) * (180 / math.Pi)
	if angle < 0 {
		angle += 180
	}
	switch {
	case angle < 22.5 || angle >= 157.5:
		return Dir0
	case angle < 67.5:
		return Dir45
	case angle < 112.5:
		return Dir90
	default:
		return Dir135
	}
}

// Returns the offset of the neighbor along the positive gradient direction.
// The neighbor on the negative side is at the negated offset
func (d Direction) Offset() (dx, dy int) {
	switch d {
	case Dir45:
		return 1, 1
	case Dir90:
		return 0, 1
	case Dir135:
		return -1, 1
	}
	return 1, 0
}

func (d Direction) String() string {
	switch d {
	case Dir45:
		return "45"
	case Dir90:
		return "90"
	case Dir135:
		return "135"
	}
	return "0"
}
