// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package jmath

import (
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

// AlignUp rounds n up to the next multiple of alignment, which has to be a
// power of two.
func AlignUp[T constraints.Integer](n T, alignment T) T {
	return (n + alignment - 1) &^ (alignment - 1)
}

// TransformPoint applies the full affine transform m to p, treating it as a
// position (w = 1).
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec4 {
	return m.Mul4x1(p.Vec4(1))
}

// TransformDirection applies the linear part of m to d, treating it as a
// direction (w = 0). The translation column of m has no effect.
func TransformDirection(m mgl32.Mat4, d mgl32.Vec3) mgl32.Vec4 {
	return m.Mul4x1(d.Vec4(0))
}
