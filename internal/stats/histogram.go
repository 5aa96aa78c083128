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

package stats

// Number of intensity levels of an 8-bit channel
const Levels = 256

// Pixel counts per intensity level of one channel
type Histogram [Levels]int

// Calculates the histogram of a single channel
func ComputeHistogram(channel []uint8) (h Histogram) {
	for _, v := range channel {
		h[v]++
	}
	return h
}

// Total number of pixels counted
func (h *Histogram) Sum() (sum int) {
	for _, c := range h {
		sum += c
	}
	return sum
}

// Returns the location and the value of the histogram peak. Ties resolve to the lowest level
func (h *Histogram) Peak() (level, count int) {
	level, count = 0, h[0]
	for i, c := range h {
		if c > count {
			level, count = i, c
		}
	}
	return level, count
}

// Returns the running sum of the histogram. The result is non-decreasing and ends at the pixel count
func CumulativeDistribution(h *Histogram) (cdf [Levels]int) {
	sum := 0
	for i, c := range h {
		sum += c
		cdf[i] = sum
	}
	return cdf
}

// Builds the lookup table which maps the given histogram onto a flat one:
// T[v] = round((cdf(v)-cdfMin) / (pixelCount-cdfMin) * 255), with cdfMin the first
// non-zero cumulative count. Returns the identity if all pixels share one value
func BuildEqualizationMap(h *Histogram, pixelCount int) (lut [Levels]uint8) {
	cdf := CumulativeDistribution(h)
	cdfMin := 0
	for _, c := range cdf {
		if c > 0 {
			cdfMin = c
			break
		}
	}

	denom := pixelCount - cdfMin
	if denom <= 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	scale := 255.0 / float64(denom)
	for i, c := range cdf {
		v := float64(c-cdfMin)*scale + 0.5
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		lut[i] = uint8(v)
	}
	return lut
}
