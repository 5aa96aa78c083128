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
	"errors"
	"fmt"
)

// Invalid parameters for a transform, detected before any pixel is touched
var ErrInvalidConfig = errors.New("invalid configuration")

// Two images were expected to share width, height and channel count
var ErrDimensionMismatch = errors.New("dimension mismatch")

// An 8-bit raster image with one (gray) or three (RGB) channels.
// Data is planar: channel planes follow each other, each plane is row-major,
// so sample (x,y) of channel c lives at Data[c*Width*Height + y*Width + x].
type Image struct {
	ID       int    // Sequential ID number, for log output
	FileName string // Original file name, if any, for log output and output naming

	Width    int
	Height   int
	Channels int

	Data []uint8
}

// Creates an image of given dimensions. Data is allocated if nil, otherwise
// it is used as is and must hold exactly width*height*channels samples
func NewImage(width, height, channels int, data []uint8) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image dimensions %dx%d must be positive", ErrInvalidConfig, width, height)
	}
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("%w: %d channels, want 1 or 3", ErrInvalidConfig, channels)
	}
	size := width * height * channels
	if data == nil {
		data = make([]uint8, size)
	} else if len(data) != size {
		return nil, fmt.Errorf("%w: %d samples for %dx%dx%d image", ErrDimensionMismatch, len(data), width, height, channels)
	}
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Data:     data,
	}, nil
}

// Creates a new image with the metadata and dimensions of img, but the given channel count.
// New data array will be allocated
func NewImageLike(img *Image, channels int) *Image {
	return &Image{
		ID:       img.ID,
		FileName: img.FileName,
		Width:    img.Width,
		Height:   img.Height,
		Channels: channels,
		Data:     make([]uint8, img.Width*img.Height*channels),
	}
}

// Returns a deep copy of the image
func (img *Image) Clone() *Image {
	c := NewImageLike(img, img.Channels)
	copy(c.Data, img.Data)
	return c
}

// Number of pixels per channel
func (img *Image) Pixels() int { return img.Width * img.Height }

// Returns the plane of channel c. The slice aliases the image data
func (img *Image) Plane(c int) []uint8 {
	size := img.Pixels()
	return img.Data[c*size : (c+1)*size]
}

// Returns the sample at (x,y) of channel c
func (img *Image) At(x, y, c int) uint8 {
	return img.Data[c*img.Pixels()+y*img.Width+x]
}

func (img *Image) DimensionsToString() string {
	if img.Channels == 1 {
		return fmt.Sprintf("%dx%d", img.Width, img.Height)
	}
	return fmt.Sprintf("%dx%dx%d", img.Width, img.Height, img.Channels)
}

// Returns ErrDimensionMismatch unless both images have equal width, height and channels
func SameShape(a, b *Image) error {
	if a.Width != b.Width || a.Height != b.Height || a.Channels != b.Channels {
		return fmt.Errorf("%w: %s vs %s", ErrDimensionMismatch, a.DimensionsToString(), b.DimensionsToString())
	}
	return nil
}

// Returns true if both images have the same shape and identical samples
func Equal(a, b *Image) bool {
	if SameShape(a, b) != nil {
		return false
	}
	for i, v := range a.Data {
		if b.Data[i] != v {
			return false
		}
	}
	return true
}

// Counts differing samples between two images of equal shape
func Diff(a, b *Image) (differing int, err error) {
	if err := SameShape(a, b); err != nil {
		return 0, err
	}
	for i, v := range a.Data {
		if b.Data[i] != v {
			differing++
		}
	}
	return differing, nil
}
