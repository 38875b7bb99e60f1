// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stillness

import "github.com/golang/geo/r3"

// ring is a fixed-capacity FIFO of rate vectors that can also drop from the
// oldest end.
type ring struct {
	data  []r3.Vector
	start int
	n     int
}

func newRing(cap int) *ring {
	return &ring{data: make([]r3.Vector, cap)}
}

// push appends v, overwriting the oldest element when full.
func (r *ring) push(v r3.Vector) {
	if r.n == len(r.data) {
		r.dropOldest(1)
	}
	r.data[(r.start+r.n)%len(r.data)] = v
	r.n++
}

func (r *ring) dropOldest(k int) {
	if k > r.n {
		k = r.n
	}
	r.start = (r.start + k) % len(r.data)
	r.n -= k
}

// at returns the i-th element, 0 being the oldest.
func (r *ring) at(i int) r3.Vector {
	return r.data[(r.start+i)%len(r.data)]
}

func (r *ring) len() int { return r.n }

func (r *ring) reset() {
	r.start, r.n = 0, 0
}

