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

package enhance

import (
	"github.com/mlnoga/quadfilter/internal/raster"
	"github.com/mlnoga/quadfilter/internal/stats"
)

// Global histogram equalization. Color images are reduced to luma first, so the
// result always has a single channel. Images of uniform intensity are returned unchanged
func Equalize(img *raster.Image) *raster.Image {
	gray := raster.Luma(img) // always a fresh copy
	h := stats.ComputeHistogram(gray.Data)
	lut := stats.BuildEqualizationMap(&h, len(gray.Data))
	raster.ApplyLUT(gray.Data, gray.Data, &lut)
	return gray
}
