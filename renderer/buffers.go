// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"errors"
	"fmt"

	"honnef.co/go/drape/encoding"
)

// LineBuffers owns the pair of buffers that carry packed lines to the GPU: a
// host-writable staging buffer and the uniform buffer shaders read from. The
// pair is allocated on first use and never reallocated.
type LineBuffers struct {
	// Read by shaders. Contents are copied from Staging.
	Device  BufferProxy
	Staging BufferProxy

	capacity    int
	bindingName string
	allocated   bool
	released    bool

	region StagingRegion
}

func NewLineBuffers(capacity int, bindingName, label string) *LineBuffers {
	if capacity <= 0 {
		panic(fmt.Sprintf("invalid capacity %d", capacity))
	}
	size := encoding.BufferSize(capacity)
	return &LineBuffers{
		Device:      NewBufferProxy(size, label),
		Staging:     NewBufferProxy(size, label+" (staging)"),
		capacity:    capacity,
		bindingName: bindingName,
	}
}

func (lb *LineBuffers) Capacity() int   { return lb.capacity }
func (lb *LineBuffers) Allocated() bool { return lb.allocated }

func (lb *LineBuffers) allocate(dev Device) ([]byte, error) {
	Logger().Debug("allocating line buffers",
		"capacity", lb.capacity,
		"size", lb.Device.Size)

	err := dev.CreateBuffer(&BufferDescriptor{
		Buffer: lb.Device,
		Usage:  BufferUsageUniform | BufferUsageCopyDst | BufferUsageCopySrc,
	})
	if err != nil {
		return nil, allocationError(lb.Device, err)
	}
	err = dev.CreateBuffer(&BufferDescriptor{
		Buffer:           lb.Staging,
		Usage:            BufferUsageCopySrc | BufferUsageMapWrite,
		MappedAtCreation: true,
	})
	if err != nil {
		dev.DestroyBuffer(lb.Device)
		return nil, allocationError(lb.Staging, err)
	}
	mem, err := dev.MappedRange(lb.Staging)
	if err != nil {
		dev.DestroyBuffer(lb.Device)
		dev.DestroyBuffer(lb.Staging)
		return nil, fmt.Errorf("getting mapped range of %s: %w", lb.Staging, err)
	}
	dev.Bind(lb.bindingName, lb.Device)
	lb.allocated = true

	Logger().Info("allocated line buffers",
		"device", lb.Device.String(),
		"staging", lb.Staging.String(),
		"binding", lb.bindingName)
	return mem, nil
}

func allocationError(buf BufferProxy, err error) error {
	if errors.Is(err, ErrAllocation) {
		return fmt.Errorf("creating %s: %w", buf, err)
	}
	return fmt.Errorf("%w: creating %s: %w", ErrAllocation, buf, err)
}

// BeginFrame prepares the staging buffer for writing active lines. It returns
// false if there is nothing to write, which is only the case once the buffers
// exist and active is zero. The first frame always writes so that the bound
// buffer has a valid header.
//
// The returned region is valid until EndFrame.
func (lb *LineBuffers) BeginFrame(dev Device, active int) (*StagingRegion, bool, error) {
	if lb.released {
		panic("use of released line buffers")
	}
	var mem []byte
	if !lb.allocated {
		var err error
		mem, err = lb.allocate(dev)
		if err != nil {
			return nil, false, err
		}
	} else if active == 0 {
		return nil, false, nil
	} else {
		var err error
		mem, err = dev.MapWrite(lb.Staging)
		if err != nil {
			return nil, false, fmt.Errorf("mapping %s: %w", lb.Staging, err)
		}
	}
	if uint64(len(mem)) < lb.Staging.Size {
		dev.Unmap(lb.Staging)
		return nil, false, fmt.Errorf("mapped range of %s is %d bytes, want %d", lb.Staging, len(mem), lb.Staging.Size)
	}
	lb.region = StagingRegion{
		mem:      mem[:lb.Staging.Size],
		capacity: lb.capacity,
	}
	return &lb.region, true, nil
}

// EndFrame writes the header for the lines put into r, unmaps the staging
// buffer and records the copy to the device buffer.
func (lb *LineBuffers) EndFrame(dev Device, r *StagingRegion, rec *Recording, policy CopyPolicy) {
	if r != &lb.region || r.mem == nil {
		panic("EndFrame called with foreign or finished staging region")
	}
	encoding.PutHeader(r.mem, encoding.CountHeader{Count: uint32(r.count)})
	r.mem = nil
	dev.Unmap(lb.Staging)

	size := lb.Staging.Size
	if policy == CopyActive {
		size = encoding.BufferSize(r.count)
	}
	rec.CopyBufferToBuffer(lb.Staging, 0, lb.Device, 0, size)
}

// Release destroys the buffers. The LineBuffers must not be used afterwards.
func (lb *LineBuffers) Release(dev Device) {
	if lb.released {
		return
	}
	lb.released = true
	if !lb.allocated {
		return
	}
	dev.DestroyBuffer(lb.Device)
	dev.DestroyBuffer(lb.Staging)
	lb.allocated = false
	Logger().Info("released line buffers", "device", lb.Device.String())
}

// StagingRegion is the mapped memory of the staging buffer for one frame.
type StagingRegion struct {
	mem      []byte
	capacity int
	count    int
}

// Put writes l into the next free slot. It returns false if all slots are
// taken.
func (r *StagingRegion) Put(l *encoding.PackedLine) bool {
	if r.count >= r.capacity {
		return false
	}
	off := encoding.LineOffset(r.count)
	copy(r.mem[off:off+encoding.LineSize], l.Bytes())
	r.count++
	return true
}

// Count returns the number of lines written so far.
func (r *StagingRegion) Count() int { return r.count }
