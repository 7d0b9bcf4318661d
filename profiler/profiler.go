// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package profiler collects nested CPU timings.
package profiler

import (
	"time"
)

type ProfilerGroup interface {
	Start(label string) ProfilerGroup
	End()
}

// Start starts a nested group on g, which may be nil.
func Start(g ProfilerGroup, label string) ProfilerGroup {
	if g == nil {
		return nopGroup{}
	}
	return g.Start(label)
}

type nopGroup struct{}

func (nopGroup) Start(string) ProfilerGroup { return nopGroup{} }
func (nopGroup) End()                       {}

// Recorder records CPU spans. The zero value is ready to use. A nil
// *Recorder records nothing.
type Recorder struct {
	roots []*Group
	// free list of groups
	free []*Group
	now  func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) time() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *Recorder) getGroup() *Group {
	if len(r.free) > 0 {
		g := r.free[len(r.free)-1]
		r.free = r.free[:len(r.free)-1]
		children := g.children[:0]
		*g = Group{children: children}
		return g
	}
	return &Group{}
}

// Start starts a top-level group.
func (r *Recorder) Start(label string) *Group {
	if r == nil {
		return nil
	}
	g := r.getGroup()
	g.recorder = r
	g.Label = label
	g.start = r.time()
	r.roots = append(r.roots, g)
	return g
}

// Results returns all finished top-level groups and their children in
// depth-first order and resets the recorder. Groups that haven't ended are
// kept for a later call.
func (r *Recorder) Results(out []Result) []Result {
	if r == nil {
		return out
	}
	n := 0
	for _, g := range r.roots {
		if g.end.IsZero() {
			r.roots[n] = g
			n++
			continue
		}
		out = g.appendResults(out, 0)
		r.release(g)
	}
	clear(r.roots[n:])
	r.roots = r.roots[:n]
	return out
}

func (r *Recorder) release(g *Group) {
	for _, c := range g.children {
		r.release(c)
	}
	clear(g.children)
	r.free = append(r.free, g)
}

type Result struct {
	Label    string
	Depth    int
	Start    time.Time
	Duration time.Duration
}

type Group struct {
	Label    string
	start    time.Time
	end      time.Time
	children []*Group
	recorder *Recorder
}

func (g *Group) Start(label string) ProfilerGroup {
	if g == nil {
		return (*Group)(nil)
	}
	return g.Nest(label)
}

func (g *Group) Nest(label string) *Group {
	if g == nil {
		return nil
	}
	cg := g.recorder.getGroup()
	cg.recorder = g.recorder
	cg.Label = label
	cg.start = g.recorder.time()
	g.children = append(g.children, cg)
	return cg
}

func (g *Group) End() {
	if g == nil {
		return
	}
	if !g.end.IsZero() {
		panic("trying to end same group twice")
	}
	g.end = g.recorder.time()
}

func (g *Group) appendResults(out []Result, depth int) []Result {
	out = append(out, Result{
		Label:    g.Label,
		Depth:    depth,
		Start:    g.start,
		Duration: g.end.Sub(g.start),
	})
	for _, c := range g.children {
		if c.end.IsZero() {
			continue
		}
		out = c.appendResults(out, depth+1)
	}
	return out
}
