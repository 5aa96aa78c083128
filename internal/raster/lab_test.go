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
	"bytes"
	"errors"
	"testing"

	"github.com/valyala/fastrand"
)

func TestLabRoundTrip(t *testing.T) {
	rng := fastrand.RNG{}
	rng.Seed(7)
	img := randomImage(&rng, 16, 9, 3)

	planes, err := SplitLab(img)
	if err != nil {
		t.Fatal(err)
	}
	back, err := planes.Merge(img, planes.L)
	if err != nil {
		t.Fatal(err)
	}
	// lightness is quantized to 8 bits, so allow small deviations
	for i, v := range back.Data {
		d := int(v) - int(img.Data[i])
		if d < -3 || d > 3 {
			t.Errorf("roundtrip[%d]=%d; want %d+-3", i, v, img.Data[i])
		}
	}
}

func TestLabGrayAxis(t *testing.T) {
	img, _ := NewImage(3, 1, 3, []uint8{0, 128, 255, 0, 128, 255, 0, 128, 255})
	planes, err := SplitLab(img)
	if err != nil {
		t.Fatal(err)
	}
	if planes.L[0] != 0 || planes.L[2] != 255 {
		t.Errorf("L black/white=%d,%d; want 0,255", planes.L[0], planes.L[2])
	}
	for i := range planes.A {
		if planes.A[i] > 1e-3 || planes.A[i] < -1e-3 || planes.B[i] > 1e-3 || planes.B[i] < -1e-3 {
			t.Errorf("gray pixel %d has chroma a=%g b=%g; want 0", i, planes.A[i], planes.B[i])
		}
	}
}

func TestSplitLabNeedsColor(t *testing.T) {
	img, _ := NewImage(2, 2, 1, nil)
	if _, err := SplitLab(img); err == nil {
		t.Errorf("SplitLab on gray image succeeded; want error")
	}
	rgb, _ := NewImage(2, 2, 3, nil)
	planes, _ := SplitLab(rgb)
	if _, err := planes.Merge(rgb, make([]uint8, 3)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Merge err=%v; want %v", err, ErrDimensionMismatch)
	}
}

func TestEncodeDecodeLossless(t *testing.T) {
	rng := fastrand.RNG{}
	rng.Seed(3)
	for _, format := range []string{FormatPNG, FormatBMP, FormatTIFF} {
		for _, channels := range []int{1, 3} {
			img := randomImage(&rng, 13, 7, channels)
			buf := bytes.Buffer{}
			if err := img.Encode(&buf, format, 95); err != nil {
				t.Fatalf("%s: encode: %v", format, err)
			}
			dec, err := Decode(&buf, 5)
			if err != nil {
				t.Fatalf("%s: decode: %v", format, err)
			}
			if dec.ID != 5 {
				t.Errorf("%s: id=%d; want 5", format, dec.ID)
			}
			// bmp stores gray as paletted 8 bit, which decodes as color
			if dec.Channels != channels {
				dec = Luma(dec)
				img = Luma(img)
			}
			if !Equal(dec, img) {
				t.Errorf("%s: %d channel roundtrip differs", format, channels)
			}
		}
	}
}

func TestFormatFromFileName(t *testing.T) {
	tcs := map[string]string{
		"a/1_inverse.jpg": FormatJPEG, "b.JPEG": FormatJPEG, "c.png": FormatPNG,
		"d.bmp": FormatBMP, "e.tif": FormatTIFF, "f.TIFF": FormatTIFF,
	}
	for name, want := range tcs {
		got, err := FormatFromFileName(name)
		if err != nil || got != want {
			t.Errorf("FormatFromFileName(%s)=%s,%v; want %s", name, got, err, want)
		}
	}
	if _, err := FormatFromFileName("x.fits"); err == nil {
		t.Errorf("FormatFromFileName(x.fits) succeeded; want error")
	}
}

func TestMontage(t *testing.T) {
	a, _ := NewImage(10, 6, 1, nil)
	b := Invert(a)
	m, err := Montage([]*Image{a, b, a, b}, []string{"one", "two", "three", "four"}, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	wantW := 2*(10+panelMargin) + panelMargin
	wantH := 2*(6+titleHeight+panelMargin) + panelMargin
	if m.Width != wantW || m.Height != wantH || m.Channels != 3 {
		t.Errorf("montage %s; want %dx%dx3", m.DimensionsToString(), wantW, wantH)
	}
	// top left pixel of the second panel is white, as b is the inverse of a black image
	x, y := panelMargin+10+panelMargin, panelMargin+titleHeight
	if m.At(x, y, 0) != 255 || m.At(panelMargin, y, 0) != 0 {
		t.Errorf("panel contents at (%d,%d)=%d and (%d,%d)=%d; want 255 and 0", x, y, m.At(x, y, 0), panelMargin, y, m.At(panelMargin, y, 0))
	}

	c, _ := NewImage(9, 6, 1, nil)
	if _, err := Montage([]*Image{a, c}, nil, 2, 0); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Montage err=%v; want %v", err, ErrDimensionMismatch)
	}

	scaled, err := Montage([]*Image{a, b}, nil, 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	if scaled.Width != 2*(5+panelMargin)+panelMargin {
		t.Errorf("scaled montage width=%d; want %d", scaled.Width, 2*(5+panelMargin)+panelMargin)
	}
}
