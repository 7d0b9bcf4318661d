// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package cpu_engine implements the renderer's device interfaces in host
// memory. It checks buffer usage and map state like a GPU backend would and
// allows reading buffers back, which makes it suitable for tests and offline
// tools.
package cpu_engine

import (
	"fmt"
	"slices"

	"honnef.co/go/drape/jmath"
	"honnef.co/go/drape/renderer"
)

var _ renderer.Device = (*Engine)(nil)
var _ renderer.CommandContext = (*Context)(nil)

type buffer struct {
	usage  renderer.BufferUsage
	data   []byte
	mapped bool
}

type Engine struct {
	// If non-zero, the maximum number of bytes that may be allocated at
	// once. Allocations beyond it fail with renderer.ErrAllocation.
	MaxBytes uint64

	buffers   map[renderer.ResourceID]*buffer
	bindings  map[string]renderer.BufferProxy
	allocated uint64
}

func New() *Engine {
	return &Engine{
		buffers:  make(map[renderer.ResourceID]*buffer),
		bindings: make(map[string]renderer.BufferProxy),
	}
}

func (eng *Engine) buffer(p renderer.BufferProxy) (*buffer, error) {
	buf, ok := eng.buffers[p.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, renderer.ErrUnknownBuffer)
	}
	return buf, nil
}

func (eng *Engine) CreateBuffer(desc *renderer.BufferDescriptor) error {
	p := desc.Buffer
	if _, ok := eng.buffers[p.ID]; ok {
		panic(fmt.Sprintf("buffer %s created twice", p))
	}
	if eng.MaxBytes != 0 && eng.allocated+p.Size > eng.MaxBytes {
		return fmt.Errorf("%w: %s exceeds budget (%d of %d bytes in use)",
			renderer.ErrAllocation, p, eng.allocated, eng.MaxBytes)
	}
	if desc.Usage&renderer.BufferUsageMapWrite != 0 && desc.Usage&^(renderer.BufferUsageMapWrite|renderer.BufferUsageCopySrc) != 0 {
		// Same restriction as WebGPU.
		return fmt.Errorf("%w: %s: MapWrite can only be combined with CopySrc, got %s",
			renderer.ErrAllocation, p, desc.Usage)
	}
	eng.buffers[p.ID] = &buffer{
		usage:  desc.Usage,
		data:   make([]byte, p.Size),
		mapped: desc.MappedAtCreation,
	}
	eng.allocated += p.Size
	renderer.Logger().Debug("cpu engine: created buffer",
		"buffer", p.String(),
		"usage", desc.Usage.String(),
		"mapped", desc.MappedAtCreation)
	return nil
}

func (eng *Engine) MapWrite(p renderer.BufferProxy) ([]byte, error) {
	buf, err := eng.buffer(p)
	if err != nil {
		return nil, err
	}
	if buf.usage&renderer.BufferUsageMapWrite == 0 {
		return nil, fmt.Errorf("%s: %w", p, renderer.ErrMapUsage)
	}
	if buf.mapped {
		return nil, fmt.Errorf("%s: %w", p, renderer.ErrAlreadyMapped)
	}
	buf.mapped = true
	return buf.data, nil
}

func (eng *Engine) MappedRange(p renderer.BufferProxy) ([]byte, error) {
	buf, err := eng.buffer(p)
	if err != nil {
		return nil, err
	}
	if !buf.mapped {
		return nil, fmt.Errorf("%s: %w", p, renderer.ErrNotMapped)
	}
	return buf.data, nil
}

func (eng *Engine) Unmap(p renderer.BufferProxy) {
	buf, err := eng.buffer(p)
	if err != nil {
		panic(err)
	}
	if !buf.mapped {
		panic(fmt.Sprintf("unmapping %s, which isn't mapped", p))
	}
	buf.mapped = false
}

func (eng *Engine) Bind(name string, p renderer.BufferProxy) {
	if _, err := eng.buffer(p); err != nil {
		panic(err)
	}
	eng.bindings[name] = p
}

func (eng *Engine) DestroyBuffer(p renderer.BufferProxy) {
	buf, ok := eng.buffers[p.ID]
	if !ok {
		return
	}
	delete(eng.buffers, p.ID)
	eng.allocated -= uint64(len(buf.data))
	for name, bp := range eng.bindings {
		if bp.ID == p.ID {
			delete(eng.bindings, name)
		}
	}
}

// Contents returns a copy of the buffer's memory.
func (eng *Engine) Contents(p renderer.BufferProxy) ([]byte, error) {
	buf, err := eng.buffer(p)
	if err != nil {
		return nil, err
	}
	return slices.Clone(buf.data), nil
}

// Bound returns the buffer bound under name.
func (eng *Engine) Bound(name string) (renderer.BufferProxy, bool) {
	p, ok := eng.bindings[name]
	return p, ok
}

func (eng *Engine) Mapped(p renderer.BufferProxy) bool {
	buf, ok := eng.buffers[p.ID]
	return ok && buf.mapped
}

func (eng *Engine) Usage(p renderer.BufferProxy) renderer.BufferUsage {
	if buf, ok := eng.buffers[p.ID]; ok {
		return buf.usage
	}
	return 0
}

// NumBuffers returns the number of live buffers.
func (eng *Engine) NumBuffers() int { return len(eng.buffers) }

// AllocatedBytes returns the size of all live buffers.
func (eng *Engine) AllocatedBytes() uint64 { return eng.allocated }

// NewContext returns a command context for one frame. Commands take effect
// when the context is submitted.
func (eng *Engine) NewContext() *Context {
	return &Context{eng: eng}
}

// Submit executes the commands recorded in ctx, in order.
func (eng *Engine) Submit(ctx *Context) error {
	if ctx.eng != eng {
		panic("submitting context of a different engine")
	}
	if ctx.submitted {
		panic("context submitted twice")
	}
	ctx.submitted = true
	for i, cmd := range ctx.Copies {
		src, err := eng.buffer(cmd.Src)
		if err != nil {
			return fmt.Errorf("copy %d: %w", i, err)
		}
		dst, err := eng.buffer(cmd.Dst)
		if err != nil {
			return fmt.Errorf("copy %d: %w", i, err)
		}
		if src.mapped || dst.mapped {
			return fmt.Errorf("copy %d: %s to %s: buffer is mapped", i, cmd.Src, cmd.Dst)
		}
		copy(dst.data[cmd.DstOffset:cmd.DstOffset+cmd.Size], src.data[cmd.SrcOffset:cmd.SrcOffset+cmd.Size])
	}
	return nil
}

func aligned(n uint64) bool { return jmath.AlignUp(n, 4) == n }

// Context records copies for a later Submit.
type Context struct {
	Copies []renderer.CopyBuffer

	eng       *Engine
	submitted bool
}

func (ctx *Context) CopyBufferToBuffer(
	srcProxy renderer.BufferProxy,
	srcOffset uint64,
	dstProxy renderer.BufferProxy,
	dstOffset uint64,
	size uint64,
) error {
	if ctx.submitted {
		panic("recording into submitted context")
	}
	src, err := ctx.eng.buffer(srcProxy)
	if err != nil {
		return err
	}
	dst, err := ctx.eng.buffer(dstProxy)
	if err != nil {
		return err
	}
	if src.usage&renderer.BufferUsageCopySrc == 0 {
		return fmt.Errorf("%s lacks CopySrc usage", srcProxy)
	}
	if dst.usage&renderer.BufferUsageCopyDst == 0 {
		return fmt.Errorf("%s lacks CopyDst usage", dstProxy)
	}
	if !aligned(size) || !aligned(srcOffset) || !aligned(dstOffset) {
		return fmt.Errorf("copy of %d bytes from offset %d to %d isn't 4-byte aligned", size, srcOffset, dstOffset)
	}
	if srcOffset+size > uint64(len(src.data)) || dstOffset+size > uint64(len(dst.data)) {
		return fmt.Errorf("copy of %d bytes from %s+%d to %s+%d is out of bounds",
			size, srcProxy, srcOffset, dstProxy, dstOffset)
	}
	ctx.Copies = append(ctx.Copies, renderer.CopyBuffer{
		Src:       srcProxy,
		SrcOffset: srcOffset,
		Dst:       dstProxy,
		DstOffset: dstOffset,
		Size:      size,
	})
	return nil
}
