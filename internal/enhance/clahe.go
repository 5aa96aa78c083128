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
	"fmt"

	"github.com/mlnoga/quadfilter/internal/raster"
	"github.com/mlnoga/quadfilter/internal/stats"
)

// Parameters for contrast limited adaptive histogram equalization
type CLAHEParams struct {
	ClipLimit float64 `json:"clipLimit" toml:"clip_limit"`
	TileRows  int     `json:"tileRows"  toml:"tile_rows"`
	TileCols  int     `json:"tileCols"  toml:"tile_cols"`
}

func DefaultCLAHEParams() CLAHEParams {
	return CLAHEParams{ClipLimit: 3.0, TileRows: 8, TileCols: 8}
}

func (p CLAHEParams) Validate() error {
	if p.ClipLimit <= 0 {
		return fmt.Errorf("%w: clip limit %g must be positive", raster.ErrInvalidConfig, p.ClipLimit)
	}
	if p.TileRows < 1 || p.TileCols < 1 {
		return fmt.Errorf("%w: tile grid %dx%d must be at least 1x1", raster.ErrInvalidConfig, p.TileRows, p.TileCols)
	}
	return nil
}

// A rectangular region of the image with its local mapping table
type tile struct {
	x0, y0        int
	width, height int
	lut           [stats.Levels]uint8
}

// Contrast limited adaptive histogram equalization. Gray images are equalized directly.
// Color images are converted to L*a*b*, only the lightness is equalized, and the
// untouched chrominance is recombined with it. Returns a new image of the same shape
func CLAHE(img *raster.Image, p CLAHEParams) (*raster.Image, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if img.Channels == 1 {
		res := raster.NewImageLike(img, 1)
		claheChannel(res.Data, img.Data, img.Width, img.Height, p)
		return res, nil
	}

	planes, err := raster.SplitLab(img)
	if err != nil {
		return nil, err
	}
	l := make([]uint8, len(planes.L))
	claheChannel(l, planes.L, img.Width, img.Height, p)
	return planes.Merge(img, l)
}

// Applies CLAHE to a single channel of given dimensions, storing results in dest
func claheChannel(dest, src []uint8, width, height int, p CLAHEParams) {
	xStarts, xLengths := splitAxis(width, p.TileCols)
	yStarts, yLengths := splitAxis(height, p.TileRows)
	cols, rows := len(xStarts), len(yStarts)

	tiles := make([]tile, rows*cols)
	for ty := 0; ty < rows; ty++ {
		for tx := 0; tx < cols; tx++ {
			t := &tiles[ty*cols+tx]
			t.x0, t.y0, t.width, t.height = xStarts[tx], yStarts[ty], xLengths[tx], yLengths[ty]
			t.lut = t.buildMap(src, width, p.ClipLimit)
		}
	}

	xLo, xHi, xFrac := axisWeights(xStarts, xLengths, width)
	yLo, yHi, yFrac := axisWeights(yStarts, yLengths, height)

	for y := 0; y < height; y++ {
		top, bottom := tiles[yLo[y]*cols:(yLo[y]+1)*cols], tiles[yHi[y]*cols:(yHi[y]+1)*cols]
		fy := yFrac[y]
		for x := 0; x < width; x++ {
			v := src[y*width+x]
			fx := xFrac[x]
			t := (1-fx)*float64(top[xLo[x]].lut[v]) + fx*float64(top[xHi[x]].lut[v])
			b := (1-fx)*float64(bottom[xLo[x]].lut[v]) + fx*float64(bottom[xHi[x]].lut[v])
			dest[y*width+x] = raster.ClampUint8((1-fy)*t + fy*b)
		}
	}
}

// Computes the clipped histogram of the tile and the resulting equalization map
func (t *tile) buildMap(src []uint8, width int, clipLimit float64) [stats.Levels]uint8 {
	var h stats.Histogram
	for y := t.y0; y < t.y0+t.height; y++ {
		for _, v := range src[y*width+t.x0 : y*width+t.x0+t.width] {
			h[v]++
		}
	}
	pixels := t.width * t.height
	ClipHistogram(&h, clipLimit, pixels)
	return stats.BuildEqualizationMap(&h, pixels)
}

// Clips all bins of the histogram to clipLimit*pixels/256 (at least 1), and redistributes
// the excess in a single pass: every bin receives excess/256, and the remaining
// excess%256 units go one each to bins 0, step, 2*step, ... with step=256/remainder.
// The total count is preserved
func ClipHistogram(h *stats.Histogram, clipLimit float64, pixels int) {
	clip := int(clipLimit * float64(pixels) / stats.Levels)
	if clip < 1 {
		clip = 1
	}

	excess := 0
	for i, c := range h {
		if c > clip {
			excess += c - clip
			h[i] = clip
		}
	}

	batch := excess / stats.Levels
	residual := excess - batch*stats.Levels
	for i := range h {
		h[i] += batch
	}
	if residual > 0 {
		step := stats.Levels / residual
		if step < 1 {
			step = 1
		}
		for i := 0; i < stats.Levels && residual > 0; i += step {
			h[i]++
			residual--
		}
	}
}

// Splits an axis of given size into n contiguous tiles. The last tile absorbs
// the remainder. Axes shorter than n get one tile per pixel
func splitAxis(size, n int) (starts, lengths []int) {
	if n > size {
		n = size
	}
	base := size / n
	starts, lengths = make([]int, n), make([]int, n)
	for i := 0; i < n; i++ {
		starts[i], lengths[i] = i*base, base
	}
	lengths[n-1] = size - (n-1)*base
	return starts, lengths
}

// For every pixel coordinate along an axis, finds the two tiles whose centers
// surround the pixel center, and the interpolation weight of the second one.
// Pixels beyond the outermost centers use the nearest tile only
func axisWeights(starts, lengths []int, size int) (lo, hi []int, frac []float64) {
	n := len(starts)
	centers := make([]float64, n)
	for i := range starts {
		centers[i] = float64(starts[i]) + float64(lengths[i])/2
	}

	lo, hi, frac = make([]int, size), make([]int, size), make([]float64, size)
	k := 0
	for p := 0; p < size; p++ {
		pos := float64(p) + 0.5
		for k+1 < n && centers[k+1] <= pos {
			k++
		}
		switch {
		case pos <= centers[0]:
			lo[p], hi[p], frac[p] = 0, 0, 0
		case k == n-1:
			lo[p], hi[p], frac[p] = n-1, n-1, 0
		default:
			lo[p], hi[p] = k, k+1
			frac[p] = (pos - centers[k]) / (centers[k+1] - centers[k])
		}
	}
	return lo, hi, frac
}
