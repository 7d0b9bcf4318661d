// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"honnef.co/go/color"
	"honnef.co/go/curve"
	"honnef.co/go/drape/encoding"
	"honnef.co/go/drape/renderer"
	"honnef.co/go/drape/scene"
)

const defaultTolerance = 0.1

// The scene the tool renders when no file is given: a red rectangle in the
// ground plane.
const defaultScene = `
override_color = "color(srgb 1 0 0)"

[[rect]]
min = [-200, -100]
max = [200, 100]
`

type sceneFile struct {
	Capacity   int    `toml:"capacity"`
	CopyPolicy string `toml:"copy_policy"`
	// Color all lines are packed with, regardless of their own.
	OverrideColor string        `toml:"override_color"`
	Premultiply   bool          `toml:"premultiply"`
	Lines         []lineEntry   `toml:"line"`
	Rects         []rectEntry   `toml:"rect"`
	Circles       []circleEntry `toml:"circle"`
}

type style struct {
	Width     *float32    `toml:"width"`
	Color     string      `toml:"color"`
	PlaneDir  *[3]float32 `toml:"plane_dir"`
	Translate [3]float32  `toml:"translate"`
}

type lineEntry struct {
	style
	From [3]float32 `toml:"from"`
	To   [3]float32 `toml:"to"`
}

type rectEntry struct {
	style
	Min [2]float64 `toml:"min"`
	Max [2]float64 `toml:"max"`
}

type circleEntry struct {
	style
	Center    [2]float64 `toml:"center"`
	Radius    float64    `toml:"radius"`
	Tolerance float64    `toml:"tolerance"`
}

func parseSceneFile(r io.Reader) (*sceneFile, error) {
	var sf sceneFile
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sf); err != nil {
		return nil, err
	}
	return &sf, nil
}

func parseColor(s string) (color.Color, error) {
	c, ok := color.Parse(s)
	if !ok {
		return color.Color{}, fmt.Errorf("invalid color %q", s)
	}
	return c, nil
}

func (st *style) template() (encoding.Line, mgl32.Mat4, error) {
	l := encoding.DefaultLine()
	if st.Width != nil {
		l.Width = *st.Width
	}
	if st.PlaneDir != nil {
		l.PlaneDir = *st.PlaneDir
	}
	if st.Color != "" {
		c, err := parseColor(st.Color)
		if err != nil {
			return encoding.Line{}, mgl32.Mat4{}, err
		}
		l.Color = c
	}
	world := mgl32.Translate3D(st.Translate[0], st.Translate[1], st.Translate[2])
	return l, world, nil
}

func (sf *sceneFile) config() (renderer.Config, error) {
	cfg := renderer.DefaultConfig()
	if sf.Capacity != 0 {
		cfg.Capacity = sf.Capacity
	}
	policy, err := renderer.ParseCopyPolicy(sf.CopyPolicy)
	if err != nil {
		return cfg, err
	}
	cfg.CopyPolicy = policy
	if sf.OverrideColor != "" {
		c, err := parseColor(sf.OverrideColor)
		if err != nil {
			return cfg, fmt.Errorf("override_color: %w", err)
		}
		cfg = cfg.WithOverrideColor(c)
	}
	cfg.Pack.Premultiply = sf.Premultiply
	return cfg, cfg.Validate()
}

func (sf *sceneFile) scene() (*scene.Scene, error) {
	s := &scene.Scene{}
	for i, e := range sf.Lines {
		l, world, err := e.template()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		l.Point0 = e.From
		l.Point1 = e.To
		s.Add(l, world)
	}
	for i, e := range sf.Rects {
		l, world, err := e.template()
		if err != nil {
			return nil, fmt.Errorf("rect %d: %w", i, err)
		}
		r := curve.NewRectFromPoints(curve.Pt(e.Min[0], e.Min[1]), curve.Pt(e.Max[0], e.Max[1]))
		s.AddOutline(r, defaultTolerance, world, l)
	}
	for i, e := range sf.Circles {
		l, world, err := e.template()
		if err != nil {
			return nil, fmt.Errorf("circle %d: %w", i, err)
		}
		if e.Radius <= 0 {
			return nil, fmt.Errorf("circle %d: radius must be positive", i)
		}
		tol := e.Tolerance
		if tol <= 0 {
			tol = defaultTolerance
		}
		c := curve.Circle{Center: curve.Pt(e.Center[0], e.Center[1]), Radius: e.Radius}
		s.AddOutline(c, tol, world, l)
	}
	return s, nil
}

func loadDefaultScene() (*sceneFile, error) {
	return parseSceneFile(bytes.NewReader([]byte(defaultScene)))
}
