// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"fmt"
	"iter"

	"github.com/go-gl/mathgl/mgl32"
	"honnef.co/go/drape/encoding"
	"honnef.co/go/drape/profiler"
)

type Stats struct {
	// Frames that wrote lines (or the initial empty header).
	FramesWritten uint64
	// Frames that had no lines and left the buffers untouched.
	FramesSkipped uint64
	// Lines dropped because they exceeded the capacity, summed over all
	// frames.
	LinesTruncated uint64
	// Copy commands executed by Flush.
	CopiesFlushed uint64
	// Number of lines in the most recently written frame.
	LastCount int
}

// Node streams draped lines into a uniform buffer once per frame. A frame
// consists of CollectAndWrite, during the prepare phase, followed by Flush,
// while a command encoder is active.
//
// Node keeps its buffers for its whole lifetime; use a single Node for the
// duration of the rendering subsystem.
type Node struct {
	cfg      Config
	buffers  *LineBuffers
	rec      Recording
	stats    Stats
	profiler profiler.ProfilerGroup
	released bool

	// reused between frames
	packed []encoding.PackedLine
}

func NewNode(cfg Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Node{
		cfg:     cfg,
		buffers: NewLineBuffers(cfg.Capacity, cfg.BindingName, cfg.Label),
		packed:  make([]encoding.PackedLine, 0, cfg.Capacity),
	}, nil
}

func (n *Node) Config() Config { return n.cfg }

// SetProfiler sets the group that spans of CollectAndWrite and Flush are
// nested under. It may be nil.
func (n *Node) SetProfiler(g profiler.ProfilerGroup) { n.profiler = g }

// Buffers returns the device buffer, which shaders read, and the staging
// buffer. They are the same for every frame.
func (n *Node) Buffers() (device, staging BufferProxy) {
	return n.buffers.Device, n.buffers.Staging
}

func (n *Node) Stats() Stats { return n.stats }

// Pending returns the number of recorded commands that Flush hasn't executed
// yet.
func (n *Node) Pending() int { return n.rec.Len() }

func (n *Node) checkReleased() {
	if n.released {
		panic("use of released Node")
	}
}

// CollectAndWrite packs the lines of the current frame and writes them to the
// staging buffer, then records the copy into the device buffer. lines yields
// each line with its world transform and must yield them in a stable order.
// At most Config.Capacity lines are written; the rest are dropped.
//
// The buffers are allocated on the first call. Allocation failures are fatal
// and wrap ErrAllocation.
func (n *Node) CollectAndWrite(dev Device, lines iter.Seq2[encoding.Line, mgl32.Mat4]) error {
	n.checkReleased()
	span := profiler.Start(n.profiler, "draped lines: collect")
	defer span.End()

	n.packed = n.packed[:0]
	total := 0
	for l, world := range lines {
		total++
		if len(n.packed) == n.cfg.Capacity {
			continue
		}
		n.packed = append(n.packed, encoding.PackWithOptions(&l, world, n.cfg.Pack))
	}
	if dropped := total - len(n.packed); dropped > 0 {
		n.stats.LinesTruncated += uint64(dropped)
		Logger().Debug("truncating draped lines",
			"lines", total,
			"capacity", n.cfg.Capacity,
			"dropped", dropped)
	}

	region, ok, err := n.buffers.BeginFrame(dev, len(n.packed))
	if err != nil {
		return err
	}
	if !ok {
		n.stats.FramesSkipped++
		Logger().Debug("no draped lines, skipping write")
		return nil
	}
	for i := range n.packed {
		if !region.Put(&n.packed[i]) {
			panic(fmt.Sprintf("staging region full after %d of %d lines", i, len(n.packed)))
		}
	}
	n.buffers.EndFrame(dev, region, &n.rec, n.cfg.CopyPolicy)
	n.stats.FramesWritten++
	n.stats.LastCount = len(n.packed)
	return nil
}

// Flush executes the copies recorded by CollectAndWrite on ctx. It does
// nothing if nothing was recorded.
func (n *Node) Flush(ctx CommandContext) error {
	n.checkReleased()
	if n.rec.Len() == 0 {
		return nil
	}
	span := profiler.Start(n.profiler, "draped lines: flush")
	defer span.End()

	pending := n.rec.Len()
	if err := n.rec.Drain(ctx); err != nil {
		return fmt.Errorf("flushing draped lines: %w", err)
	}
	n.stats.CopiesFlushed += uint64(pending)
	return nil
}

// Release destroys the node's buffers and drops pending commands. The node
// must not be used afterwards.
func (n *Node) Release(dev Device) {
	if n.released {
		return
	}
	n.released = true
	n.rec.Reset()
	n.buffers.Release(dev)
}
