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

package pool

import (
	"sync"
	"testing"
)

func TestSizedReusesBySize(t *testing.T) {
	p := NewSized[int32]()
	a := p.Get(100)
	if len(a) != 100 {
		t.Fatalf("len=%d; want 100", len(a))
	}
	p.Put(a)
	b := p.Get(7)
	if len(b) != 7 {
		t.Errorf("len=%d; want 7", len(b))
	}
	p.Clear()
	if c := p.Get(100); len(c) != 100 {
		t.Errorf("len=%d after clear; want 100", len(c))
	}
}

func TestSizedConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := Float64.Get(64 + i%4)
				s[0] = float64(j)
				Float64.Put(s)
			}
		}(i)
	}
	wg.Wait()
}
