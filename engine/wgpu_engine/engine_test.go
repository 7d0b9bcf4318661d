// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"iter"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"honnef.co/go/drape/encoding"
	"honnef.co/go/drape/gfx"
	"honnef.co/go/drape/renderer"
	"honnef.co/go/wgpu"
)

func TestBufferUsage(t *testing.T) {
	tests := []struct {
		in   renderer.BufferUsage
		want wgpu.BufferUsage
	}{
		{0, 0},
		{renderer.BufferUsageMapWrite | renderer.BufferUsageCopySrc, wgpu.BufferUsageMapWrite | wgpu.BufferUsageCopySrc},
		{
			renderer.BufferUsageUniform | renderer.BufferUsageCopyDst | renderer.BufferUsageCopySrc,
			wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bufferUsage(tt.in), "%s", tt.in)
	}
}

func TestUnknownBuffer(t *testing.T) {
	eng := New(nil)
	p := renderer.NewBufferProxy(16, "missing")
	_, err := eng.MapWrite(p)
	assert.ErrorIs(t, err, renderer.ErrUnknownBuffer)
	_, err = eng.MappedRange(p)
	assert.ErrorIs(t, err, renderer.ErrUnknownBuffer)
	_, ok := eng.Buffer(p)
	assert.False(t, ok)
	_, ok = eng.BindGroupEntry("DrapedLines", 0)
	assert.False(t, ok)
	_, ok = eng.BindGroupLayoutEntry("DrapedLines", 0, wgpu.ShaderStageVertex)
	assert.False(t, ok)
	assert.NotPanics(t, func() { eng.DestroyBuffer(p) })

	ctx := eng.NewFrameContext(nil)
	assert.ErrorIs(t, ctx.CopyBufferToBuffer(p, 0, p, 0, 16), renderer.ErrUnknownBuffer)
}

// newDevice returns a device of the default adapter, skipping the test if
// there is none.
func newDevice(t *testing.T) *wgpu.Device {
	t.Helper()
	ins := wgpu.CreateInstance(wgpu.InstanceDescriptor{})
	if ins == nil {
		t.Skip("couldn't create wgpu instance")
	}
	t.Cleanup(ins.Release)
	adp, err := ins.RequestAdapter(wgpu.RequestAdapterOptions{})
	if err != nil {
		t.Skipf("no wgpu adapter: %s", err)
	}
	t.Cleanup(adp.Release)
	dev, err := adp.RequestDevice(nil)
	if err != nil {
		t.Skipf("couldn't create wgpu device: %s", err)
	}
	t.Cleanup(dev.Release)
	return dev
}

// readBuffer copies the first size bytes of src into a mappable buffer and
// returns them.
func readBuffer(t *testing.T, dev *wgpu.Device, src *wgpu.Buffer, size uint64) []byte {
	t.Helper()
	rb := dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback",
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer func() {
		rb.Destroy()
		rb.Release()
	}()
	enc := dev.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "readback"})
	enc.CopyBufferToBuffer(src, 0, rb, 0, size)
	cmd := enc.Finish(nil)
	enc.Release()
	dev.Queue().Submit(cmd)
	cmd.Release()

	ch := rb.Map(dev, wgpu.MapModeRead, 0, int(size))
	for {
		select {
		case err := <-ch:
			require.NoError(t, err)
			data := slices.Clone(rb.ReadOnlyMappedRange(0, int(size)))
			rb.Unmap()
			return data
		default:
			dev.Poll(true)
		}
	}
}

func lines(ls ...encoding.Line) iter.Seq2[encoding.Line, mgl32.Mat4] {
	return func(yield func(encoding.Line, mgl32.Mat4) bool) {
		for _, l := range ls {
			if !yield(l, mgl32.Ident4()) {
				return
			}
		}
	}
}

func TestFrames(t *testing.T) {
	dev := newDevice(t)
	eng := New(dev)
	defer eng.Release()
	queue := dev.Queue()

	cfg := renderer.DefaultConfig()
	cfg.Capacity = 2
	node, err := renderer.NewNode(cfg)
	require.NoError(t, err)

	red := encoding.Line{
		Point1:   mgl32.Vec3{1, 0, 0},
		Width:    2,
		Color:    gfx.Red,
		PlaneDir: mgl32.Vec3{0, -1, 0},
	}
	require.NoError(t, node.CollectAndWrite(eng, lines(red)))
	require.NoError(t, eng.Flush(queue, node, "frame 0"))
	assert.Equal(t, 0, node.Pending())

	devBuf, _ := node.Buffers()
	buf, ok := eng.Buffer(devBuf)
	require.True(t, ok)
	h, got, err := encoding.Decode(readBuffer(t, dev, buf, devBuf.Size))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), h.Count)
	require.Len(t, got, 1)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, got[0].Point1)
	assert.Equal(t, [4]float32{2, 0, 0, 0}, got[0].Width)
	assert.InDeltaSlice(t, []float32{1, 0, 0, 1}, got[0].Color[:], 1e-5)

	entry, ok := eng.BindGroupEntry(renderer.DefaultBindingName, 0)
	require.True(t, ok)
	assert.Equal(t, buf, entry.Buffer)
	assert.Equal(t, encoding.BufferSize(2), entry.Size)

	// Empty frames don't touch the buffers.
	require.NoError(t, node.CollectAndWrite(eng, lines()))
	assert.Equal(t, 0, node.Pending())
	require.NoError(t, eng.Flush(queue, node, "frame 1"))

	// The second write maps the staging buffer again.
	l0, l1, l2 := red, red, red
	l0.Width, l1.Width, l2.Width = 3, 4, 5
	require.NoError(t, node.CollectAndWrite(eng, lines(l0, l1, l2)))
	require.NoError(t, eng.Flush(queue, node, "frame 2"))
	h, got, err = encoding.Decode(readBuffer(t, dev, buf, devBuf.Size))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), h.Count)
	require.Len(t, got, 2)
	assert.Equal(t, float32(3), got[0].Width[0])
	assert.Equal(t, float32(4), got[1].Width[0])
	assert.Equal(t, uint64(1), node.Stats().LinesTruncated)

	node.Release(eng)
	_, ok = eng.Buffer(devBuf)
	assert.False(t, ok)
}

func TestCreateBufferValidationError(t *testing.T) {
	dev := newDevice(t)
	eng := New(dev)
	defer eng.Release()

	// MapWrite may only be combined with CopySrc.
	p := renderer.NewBufferProxy(64, "invalid")
	err := eng.CreateBuffer(&renderer.BufferDescriptor{
		Buffer: p,
		Usage:  renderer.BufferUsageMapWrite | renderer.BufferUsageUniform,
	})
	assert.ErrorIs(t, err, renderer.ErrAllocation)
	_, ok := eng.Buffer(p)
	assert.False(t, ok)
}
