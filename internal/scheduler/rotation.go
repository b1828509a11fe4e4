// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package scheduler

// Rotation holds the cyclic category/type rotation pointer. The builder
// advances it only after a non-featured placement, or when a category
// yields no content at all.
type Rotation struct {
	order []string
	i     int
}

// NewRotation returns a rotation over the given token order.
func NewRotation(order []string) *Rotation {
	if len(order) == 0 {
		order = DefaultConfig().RotationOrder
	}
	cp := make([]string, len(order))
	copy(cp, order)
	return &Rotation{order: cp}
}

// Next returns the current token without advancing.
func (r *Rotation) Next() string {
	return r.order[r.i]
}

// Advance moves the pointer one step, wrapping at the end.
func (r *Rotation) Advance() {
	r.i = (r.i + 1) % len(r.order)
}

// Reset moves the pointer back to the start of the order. Called at the
// start of each new day being built.
func (r *Rotation) Reset() {
	r.i = 0
}

// Pos returns the current pointer position.
func (r *Rotation) Pos() int {
	return r.i
}

// Len returns the number of tokens in the rotation.
func (r *Rotation) Len() int {
	return len(r.order)
}
