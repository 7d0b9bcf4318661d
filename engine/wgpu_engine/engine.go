// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package wgpu_engine

import (
	"fmt"

	"honnef.co/go/drape/jmath"
	"honnef.co/go/drape/renderer"
	"honnef.co/go/wgpu"
)

// Buffers mapped at creation must have a size that is a multiple of this.
const copyBufferAlignment = 4

var _ renderer.Device = (*Engine)(nil)
var _ renderer.CommandContext = (*FrameContext)(nil)

type buffer struct {
	buf    *wgpu.Buffer
	size   uint64
	mapped bool
}

// Engine implements renderer.Device on a wgpu device.
type Engine struct {
	Device *wgpu.Device

	buffers  map[renderer.ResourceID]*buffer
	bindings map[string]renderer.BufferProxy
}

func New(dev *wgpu.Device) *Engine {
	return &Engine{
		Device:   dev,
		buffers:  make(map[renderer.ResourceID]*buffer),
		bindings: make(map[string]renderer.BufferProxy),
	}
}

func bufferUsage(u renderer.BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&renderer.BufferUsageMapWrite != 0 {
		out |= wgpu.BufferUsageMapWrite
	}
	if u&renderer.BufferUsageCopySrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	if u&renderer.BufferUsageCopyDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	if u&renderer.BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	return out
}

func (eng *Engine) buffer(p renderer.BufferProxy) (*buffer, error) {
	buf, ok := eng.buffers[p.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, renderer.ErrUnknownBuffer)
	}
	return buf, nil
}

// Buffer returns the wgpu buffer backing p.
func (eng *Engine) Buffer(p renderer.BufferProxy) (*wgpu.Buffer, bool) {
	buf, ok := eng.buffers[p.ID]
	if !ok {
		return nil, false
	}
	return buf.buf, true
}

func (eng *Engine) CreateBuffer(desc *renderer.BufferDescriptor) error {
	p := desc.Buffer
	if _, ok := eng.buffers[p.ID]; ok {
		panic(fmt.Sprintf("buffer %s created twice", p))
	}
	// wgpu reports allocation failures asynchronously through error scopes
	// and always returns a buffer handle.
	eng.Device.PushErrorScope(wgpu.ErrorFilterOutOfMemory)
	eng.Device.PushErrorScope(wgpu.ErrorFilterValidation)
	buf := eng.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            p.Name,
		Usage:            bufferUsage(desc.Usage),
		Size:             jmath.AlignUp(p.Size, copyBufferAlignment),
		MappedAtCreation: desc.MappedAtCreation,
	})
	errValidation := eng.Device.PopErrorScope()
	errOOM := eng.Device.PopErrorScope()
	if errOOM != nil || errValidation != nil {
		buf.Release()
		err := errOOM
		if err == nil {
			err = errValidation
		}
		return fmt.Errorf("%w: %s: %w", renderer.ErrAllocation, p, err)
	}
	eng.buffers[p.ID] = &buffer{
		buf:    buf,
		size:   p.Size,
		mapped: desc.MappedAtCreation,
	}
	renderer.Logger().Debug("wgpu engine: created buffer",
		"buffer", p.String(),
		"usage", desc.Usage.String())
	return nil
}

// MapWrite maps the buffer and polls the device until the mapping completes.
func (eng *Engine) MapWrite(p renderer.BufferProxy) ([]byte, error) {
	buf, err := eng.buffer(p)
	if err != nil {
		return nil, err
	}
	if buf.mapped {
		return nil, fmt.Errorf("%s: %w", p, renderer.ErrAlreadyMapped)
	}
	ch := buf.buf.Map(eng.Device, wgpu.MapModeWrite, 0, int(buf.size))
	for {
		select {
		case err := <-ch:
			if err != nil {
				return nil, fmt.Errorf("mapping %s: %w", p, err)
			}
			buf.mapped = true
			return buf.buf.MappedRange(0, int(buf.size)), nil
		default:
			eng.Device.Poll(true)
		}
	}
}

func (eng *Engine) MappedRange(p renderer.BufferProxy) ([]byte, error) {
	buf, err := eng.buffer(p)
	if err != nil {
		return nil, err
	}
	if !buf.mapped {
		return nil, fmt.Errorf("%s: %w", p, renderer.ErrNotMapped)
	}
	return buf.buf.MappedRange(0, int(buf.size)), nil
}

func (eng *Engine) Unmap(p renderer.BufferProxy) {
	buf, err := eng.buffer(p)
	if err != nil {
		panic(err)
	}
	if !buf.mapped {
		panic(fmt.Sprintf("unmapping %s, which isn't mapped", p))
	}
	buf.buf.Unmap()
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
	buf.buf.Destroy()
	buf.buf.Release()
	for name, bp := range eng.bindings {
		if bp.ID == p.ID {
			delete(eng.bindings, name)
		}
	}
}

// Release destroys all buffers that are still alive.
func (eng *Engine) Release() {
	for _, buf := range eng.buffers {
		buf.buf.Destroy()
		buf.buf.Release()
	}
	clear(eng.buffers)
	clear(eng.bindings)
}

// BindGroupLayoutEntry returns the layout entry for the uniform buffer bound
// under name, for use in the pipeline that consumes it.
func (eng *Engine) BindGroupLayoutEntry(name string, binding uint32, visibility wgpu.ShaderStage) (wgpu.BindGroupLayoutEntry, bool) {
	p, ok := eng.bindings[name]
	if !ok {
		return wgpu.BindGroupLayoutEntry{}, false
	}
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
		Buffer: &wgpu.BufferBindingLayout{
			Type:           wgpu.BufferBindingTypeUniform,
			MinBindingSize: p.Size,
		},
	}, true
}

// BindGroupEntry returns the bind group entry for the buffer bound under name,
// covering the whole buffer.
func (eng *Engine) BindGroupEntry(name string, binding uint32) (wgpu.BindGroupEntry, bool) {
	p, ok := eng.bindings[name]
	if !ok {
		return wgpu.BindGroupEntry{}, false
	}
	buf := eng.buffers[p.ID]
	return wgpu.BindGroupEntry{
		Binding: binding,
		Buffer:  buf.buf,
		Offset:  0,
		Size:    buf.size,
	}, true
}

// Flush records the node's pending copies into a new command encoder and
// submits them to queue.
func (eng *Engine) Flush(queue *wgpu.Queue, node *renderer.Node, label string) error {
	if node.Pending() == 0 {
		return nil
	}
	encoder := eng.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	err := node.Flush(&FrameContext{eng: eng, Encoder: encoder})
	cmd := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		cmd.Release()
		return err
	}
	queue.Submit(cmd)
	cmd.Release()
	return nil
}

// FrameContext records commands into a wgpu command encoder.
type FrameContext struct {
	Encoder *wgpu.CommandEncoder

	eng *Engine
}

func (eng *Engine) NewFrameContext(enc *wgpu.CommandEncoder) *FrameContext {
	return &FrameContext{eng: eng, Encoder: enc}
}

func (ctx *FrameContext) CopyBufferToBuffer(
	srcProxy renderer.BufferProxy,
	srcOffset uint64,
	dstProxy renderer.BufferProxy,
	dstOffset uint64,
	size uint64,
) error {
	src, err := ctx.eng.buffer(srcProxy)
	if err != nil {
		return err
	}
	dst, err := ctx.eng.buffer(dstProxy)
	if err != nil {
		return err
	}
	if src.mapped {
		return fmt.Errorf("copying from %s: %w", srcProxy, renderer.ErrAlreadyMapped)
	}
	ctx.Encoder.CopyBufferToBuffer(src.buf, srcOffset, dst.buf, dstOffset, size)
	return nil
}
