// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

// Rotation is a round-robin cursor over a fixed ordered table
type Rotation struct {
	n   int
	cur int
}

// NewRotation creates a cursor over n entries starting at 0
func NewRotation(n int) *Rotation {
	return &Rotation{n: n}
}

// Current returns the cursor position
func (r *Rotation) Current() int {
	return r.cur
}

// Advance moves to the next entry, wrapping past the last one
func (r *Rotation) Advance() {
	if r.n == 0 {
		return
	}
	r.cur++
	if r.cur >= r.n {
		r.cur = 0
	}
}

// Len returns the table size
func (r *Rotation) Len() int {
	return r.n
}
