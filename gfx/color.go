// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

import (
	"honnef.co/go/color"
)

var (
	White = color.Make(color.SRGB, 1, 1, 1, 1)
	Red   = color.Make(color.SRGB, 1, 0, 0, 1)
)

// LinearRGBA converts c to linear sRGB with straight (not premultiplied)
// alpha. The zero Color has no color space and converts to opaque white.
func LinearRGBA(c color.Color) [4]float32 {
	if c.Space == nil {
		return [4]float32{1, 1, 1, 1}
	}
	cc := c.Convert(color.LinearSRGB)
	return [4]float32{
		float32(cc.Values[0]),
		float32(cc.Values[1]),
		float32(cc.Values[2]),
		float32(cc.Values[3]),
	}
}

// Premul32 is like LinearRGBA but multiplies the color channels by alpha.
func Premul32(c color.Color) [4]float32 {
	v := LinearRGBA(c)
	return [4]float32{v[0] * v[3], v[1] * v[3], v[2] * v[3], v[3]}
}
