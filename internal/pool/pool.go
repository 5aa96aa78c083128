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
)

// Pool of constant sized slices of a given element type, keyed by size,
// to reduce allocation overhead for scratch planes of repeated image sizes
type Sized[T any] struct {
	sync.RWMutex
	m map[int]*sync.Pool
}

func NewSized[T any]() *Sized[T] {
	return &Sized[T]{m: make(map[int]*sync.Pool)}
}

// Returns the pool for slices of the given size
func (p *Sized[T]) get(size int) *sync.Pool {
	p.RLock()
	pool := p.m[size]
	p.RUnlock()
	if pool != nil {
		return pool
	}
	p.Lock()
	defer p.Unlock()
	if pool = p.m[size]; pool == nil {
		pool = &sync.Pool{
			New: func() interface{} {
				s := make([]T, size)
				return &s
			},
		}
		p.m[size] = pool
	}
	return pool
}

// Retrieves a slice of given size from the pool. Contents are undefined
func (p *Sized[T]) Get(size int) []T {
	return *(p.get(size).Get().(*[]T))
}

// Returns a slice to the pool
func (p *Sized[T]) Put(arr []T) {
	arr = arr[:cap(arr)]
	p.get(len(arr)).Put(&arr)
}

// Drops all pooled slices
func (p *Sized[T]) Clear() {
	p.Lock()
	p.m = make(map[int]*sync.Pool)
	p.Unlock()
}

// Shared pool for float64 scratch planes
var Float64 = NewSized[float64]()
