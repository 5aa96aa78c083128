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
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Output formats known to the encoder
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
)

// Returns the output format for the suffix of the given file name
func FormatFromFileName(fileName string) (string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	case ".bmp":
		return FormatBMP, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	}
	return "", errors.New("Unknown suffix")
}

// Converts the raster image into a Go image: image.Gray for one channel, image.RGBA for three
func (img *Image) ToImage() image.Image {
	width, height := img.Width, img.Height
	rect := image.Rect(0, 0, width, height)
	if img.Channels == 1 {
		gray := image.NewGray(rect)
		copy(gray.Pix, img.Data) // stride equals width for freshly allocated images
		return gray
	}
	size := img.Pixels()
	rgba := image.NewRGBA(rect)
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			c := color.RGBA{img.Data[yoffset+x], img.Data[yoffset+x+size], img.Data[yoffset+x+size*2], 255}
			rgba.SetRGBA(x, y, c)
		}
	}
	return rgba
}

// Encodes the image in the given format. Quality applies to JPEG only
func (img *Image) Encode(w io.Writer, format string, quality int) error {
	goImg := img.ToImage()
	switch format {
	case FormatJPEG:
		return jpeg.Encode(w, goImg, &jpeg.Options{Quality: quality})
	case FormatPNG:
		return png.Encode(w, goImg)
	case FormatBMP:
		return bmp.Encode(w, goImg)
	case FormatTIFF:
		return tiff.Encode(w, goImg, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	}
	return fmt.Errorf("%d: unknown output format %s", img.ID, format)
}

// Writes the image to the given file, choosing the format by suffix.
// Missing parent directories are created
func (img *Image) WriteFile(fileName string, quality int) error {
	format, err := FormatFromFileName(fileName)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(fileName); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := img.Encode(writer, format, quality); err != nil {
		return err
	}
	return writer.Flush()
}
