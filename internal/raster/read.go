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
	"bufio"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Reads an image from the file with the given name. Format is detected from the content
func NewImageFromFile(fileName string, id int) (*Image, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Decode(bufio.NewReader(f), id)
	if err != nil {
		return nil, fmt.Errorf("%d: error decoding %s: %w", id, fileName, err)
	}
	img.FileName = fileName
	return img, nil
}

// Decodes a jpeg, png, bmp or tiff stream. Gray color models yield
// one channel, everything else is converted to three channel RGB
func Decode(r io.Reader, id int) (*Image, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	img, err := FromImage(src)
	if err != nil {
		return nil, fmt.Errorf("%d: %s: %w", id, format, err)
	}
	img.ID = id
	return img, nil
}

// Converts a Go image into a raster image
func FromImage(src image.Image) (*Image, error) {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	channels := 3
	if src.ColorModel() == color.GrayModel || src.ColorModel() == color.Gray16Model {
		channels = 1
	}
	img, err := NewImage(width, height, channels, nil)
	if err != nil {
		return nil, err
	}

	if gray, ok := src.(*image.Gray); ok {
		for y := 0; y < height; y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
			copy(img.Data[y*width:(y+1)*width], row)
		}
		return img, nil
	}

	size := img.Pixels()
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if channels == 1 {
				img.Data[yoffset+x] = uint8(r >> 8)
				continue
			}
			img.Data[yoffset+x] = uint8(r >> 8)
			img.Data[yoffset+x+size] = uint8(g >> 8)
			img.Data[yoffset+x+size*2] = uint8(b >> 8)
		}
	}
	return img, nil
}
