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
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Basic statistics of one 8-bit channel
type ChannelStats struct {
	Min       uint8
	Max       uint8
	Mean      float64
	StdDev    float64
	Peak      uint8 // most frequent level
	Pixels    int
	Histogram Histogram
}

var levelValues = func() []float64 {
	vs := make([]float64, Levels)
	for i := range vs {
		vs[i] = float64(i)
	}
	return vs
}()

// Calculates statistics for the given channel from its histogram
func NewChannelStats(channel []uint8) *ChannelStats {
	s := &ChannelStats{Histogram: ComputeHistogram(channel), Pixels: len(channel)}
	if s.Pixels == 0 {
		return s
	}

	for i, c := range s.Histogram {
		if c > 0 {
			s.Min = uint8(i)
			break
		}
	}
	for i := Levels - 1; i >= 0; i-- {
		if s.Histogram[i] > 0 {
			s.Max = uint8(i)
			break
		}
	}
	peak, _ := s.Histogram.Peak()
	s.Peak = uint8(peak)

	weights := make([]float64, Levels)
	for i, c := range s.Histogram {
		weights[i] = float64(c)
	}
	if s.Pixels > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(levelValues, weights)
	} else {
		s.Mean = stat.Mean(levelValues, weights)
	}
	return s
}

// Fraction of the [0,255] range covered by the channel
func (s *ChannelStats) Spread() float64 {
	return float64(int(s.Max)-int(s.Min)) / 255
}

func (s *ChannelStats) String() string {
	return fmt.Sprintf("Min %d Max %d Mean %.4g StdDev %.4g Peak %d", s.Min, s.Max, s.Mean, s.StdDev, s.Peak)
}
