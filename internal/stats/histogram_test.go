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

import (
	"bytes"
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

func TestComputeHistogram(t *testing.T) {
	rng := fastrand.RNG{}
	rng.Seed(11)
	for n := 1; n < 2000; n += 97 {
		data := make([]uint8, n)
		for i := range data {
			data[i] = uint8(rng.Uint32n(256))
		}
		h := ComputeHistogram(data)
		if h.Sum() != n {
			t.Errorf("sum=%d; want %d", h.Sum(), n)
		}
		cdf := CumulativeDistribution(&h)
		for i := 1; i < Levels; i++ {
			if cdf[i] < cdf[i-1] {
				t.Errorf("cdf[%d]=%d < cdf[%d]=%d", i, cdf[i], i-1, cdf[i-1])
			}
		}
		if cdf[Levels-1] != n {
			t.Errorf("cdf[255]=%d; want %d", cdf[Levels-1], n)
		}
	}
}

func TestEqualizationMapDegenerate(t *testing.T) {
	for _, v := range []uint8{0, 128, 255} {
		data := make([]uint8, 64)
		for i := range data {
			data[i] = v
		}
		h := ComputeHistogram(data)
		lut := BuildEqualizationMap(&h, len(data))
		for i, m := range lut {
			if int(m) != i {
				t.Errorf("value %d: lut[%d]=%d; want identity", v, i, m)
			}
		}
	}
}

func TestEqualizationMap(t *testing.T) {
	// four levels with equal counts spread to the full range
	data := []uint8{10, 10, 20, 20, 30, 30, 40, 40}
	h := ComputeHistogram(data)
	lut := BuildEqualizationMap(&h, len(data))
	want := map[int]uint8{0: 0, 10: 0, 15: 0, 20: 85, 30: 170, 40: 255, 200: 255}
	for level, w := range want {
		if lut[level] != w {
			t.Errorf("lut[%d]=%d; want %d", level, lut[level], w)
		}
	}
	for i := 1; i < Levels; i++ {
		if lut[i] < lut[i-1] {
			t.Errorf("lut not monotonic at %d: %d < %d", i, lut[i], lut[i-1])
		}
	}
}

func TestChannelStats(t *testing.T) {
	data := []uint8{2, 4, 4, 4, 5, 5, 7, 9}
	s := NewChannelStats(data)
	if s.Min != 2 || s.Max != 9 || s.Peak != 4 || s.Pixels != 8 {
		t.Errorf("stats %v; want min 2 max 9 peak 4", s)
	}
	if math.Abs(s.Mean-5) > 1e-9 {
		t.Errorf("mean=%g; want 5", s.Mean)
	}
	// unbiased estimate: sum of squared deviations 32 over 7
	if math.Abs(s.StdDev-math.Sqrt(32.0/7.0)) > 1e-9 {
		t.Errorf("stddev=%g; want %g", s.StdDev, math.Sqrt(32.0/7.0))
	}
	if math.Abs(s.Spread()-7.0/255) > 1e-12 {
		t.Errorf("spread=%g; want %g", s.Spread(), 7.0/255)
	}
}

func TestWriteHistogramChart(t *testing.T) {
	data := make([]uint8, 1000)
	for i := range data {
		data[i] = uint8(i % 200)
	}
	h := ComputeHistogram(data)
	buf := bytes.Buffer{}
	if err := WriteHistogramChart(&buf, "test", []NamedHistogram{{"source", &h}}); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Errorf("chart output is not a PNG")
	}
}
