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

// Rec. 601 luma weights, as used for RGB to gray conversion
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Returns the complement 255-v of every sample, in a newly allocated image
func Invert(img *Image) *Image {
	res := NewImageLike(img, img.Channels)
	for i, v := range img.Data {
		res.Data[i] = 255 - v
	}
	return res
}

// Returns a single channel gray image. Gray inputs are copied, RGB inputs
// are reduced with the weighted sum Y = 0.299R + 0.587G + 0.114B
func Luma(img *Image) *Image {
	if img.Channels == 1 {
		return img.Clone()
	}
	res := NewImageLike(img, 1)
	r, g, b := img.Plane(0), img.Plane(1), img.Plane(2)
	for i := range res.Data {
		y := lumaR*float64(r[i]) + lumaG*float64(g[i]) + lumaB*float64(b[i])
		res.Data[i] = ClampUint8(y)
	}
	return res
}

// Replicates a gray image into the given number of channels. Images which
// already have that many channels are copied
func Expand(img *Image, channels int) *Image {
	if img.Channels == channels {
		return img.Clone()
	}
	res := NewImageLike(img, channels)
	src := img.Plane(0)
	for c := 0; c < channels; c++ {
		copy(res.Plane(c), src)
	}
	return res
}

// Applies a 256-entry lookup table to every sample of src, storing into dest
func ApplyLUT(dest, src []uint8, lut *[256]uint8) {
	for i, v := range src {
		dest[i] = lut[v]
	}
}

// Rounds to the nearest integer and saturates to [0,255]
func ClampUint8(v float64) uint8 {
	v += 0.5
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
