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
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const titleHeight = 20 // pixel height of the title strip above each panel
const panelMargin = 4  // pixel gap between panels

// Arranges equally sized panels in a grid with the given number of columns,
// each with its title above it. Panels wider than maxPanelWidth are scaled
// down, 0 keeps the original size. Returns a new RGB image
func Montage(panels []*Image, titles []string, cols, maxPanelWidth int) (*Image, error) {
	if len(panels) == 0 {
		return nil, fmt.Errorf("%w: montage without panels", ErrInvalidConfig)
	}
	if cols <= 0 {
		return nil, fmt.Errorf("%w: montage with %d columns", ErrInvalidConfig, cols)
	}
	first := panels[0]
	for _, p := range panels[1:] {
		if p.Width != first.Width || p.Height != first.Height {
			return nil, fmt.Errorf("%w: montage panel %dx%d vs %dx%d", ErrDimensionMismatch, p.Width, p.Height, first.Width, first.Height)
		}
	}

	pw, ph := first.Width, first.Height
	if maxPanelWidth > 0 && pw > maxPanelWidth {
		ph = ph * maxPanelWidth / pw
		if ph < 1 {
			ph = 1
		}
		pw = maxPanelWidth
	}
	rows := (len(panels) + cols - 1) / cols
	cellW, cellH := pw+panelMargin, ph+titleHeight+panelMargin
	canvas := image.NewRGBA(image.Rect(0, 0, cols*cellW+panelMargin, rows*cellH+panelMargin))
	xdraw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, xdraw.Src)

	drawer := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	for i, p := range panels {
		x0 := panelMargin + (i%cols)*cellW
		y0 := panelMargin + (i/cols)*cellH
		if i < len(titles) {
			drawer.Dot = fixed.P(x0, y0+titleHeight-6)
			drawer.DrawString(titles[i])
		}
		dst := image.Rect(x0, y0+titleHeight, x0+pw, y0+titleHeight+ph)
		src := p.ToImage()
		if pw == p.Width && ph == p.Height {
			xdraw.Draw(canvas, dst, src, image.Point{}, xdraw.Src)
		} else {
			xdraw.BiLinear.Scale(canvas, dst, src, src.Bounds(), xdraw.Src, nil)
		}
	}

	res, err := FromImage(canvas)
	if err != nil {
		return nil, err
	}
	res.ID, res.FileName = first.ID, first.FileName
	return res, nil
}
