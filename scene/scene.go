// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package scene holds the draped lines of a scene along with their world
// transforms.
package scene

import (
	"cmp"
	"iter"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"honnef.co/go/curve"
	"honnef.co/go/drape/encoding"
)

type EntityID uint64

type entity struct {
	id    EntityID
	line  encoding.Line
	world mgl32.Mat4
}

// Scene is a set of lines, each with its own world transform. Lines are
// enumerated in the order they were added, which is stable across frames.
type Scene struct {
	nextID   EntityID
	entities []entity
}

func (s *Scene) find(id EntityID) (int, bool) {
	return slices.BinarySearchFunc(s.entities, id, func(e entity, id EntityID) int {
		return cmp.Compare(e.id, id)
	})
}

// Add adds a line and returns its ID. IDs are never reused.
func (s *Scene) Add(l encoding.Line, world mgl32.Mat4) EntityID {
	s.nextID++
	s.entities = append(s.entities, entity{s.nextID, l, world})
	return s.nextID
}

func (s *Scene) Remove(id EntityID) bool {
	i, ok := s.find(id)
	if !ok {
		return false
	}
	s.entities = slices.Delete(s.entities, i, i+1)
	return true
}

func (s *Scene) Get(id EntityID) (encoding.Line, mgl32.Mat4, bool) {
	i, ok := s.find(id)
	if !ok {
		return encoding.Line{}, mgl32.Mat4{}, false
	}
	e := &s.entities[i]
	return e.line, e.world, true
}

func (s *Scene) SetLine(id EntityID, l encoding.Line) bool {
	i, ok := s.find(id)
	if ok {
		s.entities[i].line = l
	}
	return ok
}

func (s *Scene) SetTransform(id EntityID, world mgl32.Mat4) bool {
	i, ok := s.find(id)
	if ok {
		s.entities[i].world = world
	}
	return ok
}

func (s *Scene) Len() int { return len(s.entities) }

func (s *Scene) Reset() {
	clear(s.entities)
	s.entities = s.entities[:0]
}

// Lines yields every line with its world transform, in ascending ID order.
// The scene must not be modified during iteration.
func (s *Scene) Lines() iter.Seq2[encoding.Line, mgl32.Mat4] {
	return func(yield func(encoding.Line, mgl32.Mat4) bool) {
		for i := range s.entities {
			e := &s.entities[i]
			if !yield(e.line, e.world) {
				return
			}
		}
	}
}

// AddOutline drapes the outline of shape and adds each resulting segment
// with the same world transform. It returns the IDs of the added lines.
func (s *Scene) AddOutline(
	shape curve.Shape,
	tolerance float64,
	world mgl32.Mat4,
	template encoding.Line,
) []EntityID {
	var ids []EntityID
	for l := range DrapeShape(shape, tolerance, template) {
		ids = append(ids, s.Add(l, world))
	}
	return ids
}

func groundPoint(pt curve.Point) mgl32.Vec3 {
	return mgl32.Vec3{float32(pt.X), 0, float32(pt.Y)}
}

// DrapePath flattens a 2D path into line segments in the ground plane. The
// path's x and y coordinates become the lines' x and z coordinates; y is
// zero. Width, color and plane direction are taken from template.
func DrapePath(
	path iter.Seq[curve.PathElement],
	tolerance float64,
	template encoding.Line,
) iter.Seq[encoding.Line] {
	return func(yield func(encoding.Line) bool) {
		var start, cur curve.Point
		segment := func(p0, p1 curve.Point) bool {
			l := template
			l.Point0 = groundPoint(p0)
			l.Point1 = groundPoint(p1)
			return yield(l)
		}
		for el := range curve.Flatten(path, tolerance) {
			switch el.Kind {
			case curve.MoveToKind:
				start, cur = el.P0, el.P0
			case curve.LineToKind:
				if !segment(cur, el.P0) {
					return
				}
				cur = el.P0
			case curve.ClosePathKind:
				if cur != start {
					if !segment(cur, start) {
						return
					}
				}
				cur = start
			}
		}
	}
}

// DrapeShape is DrapePath applied to the outline of shape.
func DrapeShape(shape curve.Shape, tolerance float64, template encoding.Line) iter.Seq[encoding.Line] {
	return DrapePath(shape.PathElements(tolerance), tolerance, template)
}
