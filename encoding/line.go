// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package encoding

import (
	"github.com/go-gl/mathgl/mgl32"
	"honnef.co/go/color"
	"honnef.co/go/drape/gfx"
	"honnef.co/go/drape/jmath"
)

// Line is a line draped onto a plane. Its points are in the local space of
// whatever owns it; the owner's world transform is applied when packing.
type Line struct {
	Point0 mgl32.Vec3
	Point1 mgl32.Vec3
	Width  float32
	Color  color.Color
	// Normal of the plane the line is draped onto.
	PlaneDir mgl32.Vec3
}

// DefaultLine returns a white line of width 1, draped downwards.
func DefaultLine() Line {
	return Line{
		Width:    1,
		Color:    gfx.White,
		PlaneDir: mgl32.Vec3{0, -1, 0},
	}
}

type PackOptions struct {
	// If set, used instead of the line's own color.
	OverrideColor *color.Color
	// Premultiply the color channels by alpha.
	Premultiply bool
}

// Pack converts l to its GPU representation, transforming it to world space
// with world.
func Pack(l *Line, world mgl32.Mat4) PackedLine {
	return PackWithOptions(l, world, PackOptions{})
}

func PackWithOptions(l *Line, world mgl32.Mat4, opts PackOptions) PackedLine {
	c := l.Color
	if opts.OverrideColor != nil {
		c = *opts.OverrideColor
	}
	var rgba [4]float32
	if opts.Premultiply {
		rgba = gfx.Premul32(c)
	} else {
		rgba = gfx.LinearRGBA(c)
	}
	return PackedLine{
		Point0:   jmath.TransformPoint(world, l.Point0),
		Point1:   jmath.TransformPoint(world, l.Point1),
		Width:    [4]float32{l.Width, 0, 0, 0},
		Color:    rgba,
		PlaneDir: jmath.TransformDirection(world, l.PlaneDir),
	}
}
