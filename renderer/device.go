// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"errors"
	"strings"
)

var (
	// ErrAllocation is returned when a device fails to create a buffer. It is
	// fatal; nothing in this package retries.
	ErrAllocation = errors.New("renderer: buffer allocation failed")

	// ErrUnknownBuffer is returned when a proxy has no buffer on the device.
	ErrUnknownBuffer = errors.New("renderer: unknown buffer")

	// ErrNotMapped is returned when accessing the memory of an unmapped
	// buffer.
	ErrNotMapped = errors.New("renderer: buffer is not mapped")

	// ErrAlreadyMapped is returned when mapping a buffer that is mapped.
	ErrAlreadyMapped = errors.New("renderer: buffer is already mapped")

	// ErrMapUsage is returned when mapping a buffer that wasn't created for
	// mapping.
	ErrMapUsage = errors.New("renderer: buffer usage does not allow mapping")

	// ErrInvalidCapacity is returned by Config.Validate.
	ErrInvalidCapacity = errors.New("renderer: invalid capacity")
)

type BufferUsage uint32

const (
	BufferUsageMapWrite BufferUsage = 1 << iota
	BufferUsageCopySrc
	BufferUsageCopyDst
	BufferUsageUniform
)

func (u BufferUsage) String() string {
	if u == 0 {
		return "None"
	}
	var parts []string
	for _, f := range [...]struct {
		bit  BufferUsage
		name string
	}{
		{BufferUsageMapWrite, "MapWrite"},
		{BufferUsageCopySrc, "CopySrc"},
		{BufferUsageCopyDst, "CopyDst"},
		{BufferUsageUniform, "Uniform"},
	} {
		if u&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

type BufferDescriptor struct {
	Buffer           BufferProxy
	Usage            BufferUsage
	MappedAtCreation bool
}

// Device is the set of buffer operations the streaming pipeline needs from a
// GPU backend.
type Device interface {
	// CreateBuffer allocates the buffer described by desc. Failures wrap
	// ErrAllocation.
	CreateBuffer(desc *BufferDescriptor) error
	// MapWrite maps buf for writing and returns its memory. It blocks until
	// the device has finished using the buffer.
	MapWrite(buf BufferProxy) ([]byte, error)
	// MappedRange returns the memory of a buffer that is already mapped,
	// such as one created with MappedAtCreation.
	MappedRange(buf BufferProxy) ([]byte, error)
	// Unmap makes the written memory visible to the device. Memory returned
	// by MapWrite or MappedRange must not be used afterwards.
	Unmap(buf BufferProxy)
	// Bind exposes buf to shaders under name.
	Bind(name string, buf BufferProxy)
	DestroyBuffer(buf BufferProxy)
}

// CommandContext is the command encoder that is active while a frame is being
// rendered.
type CommandContext interface {
	CopyBufferToBuffer(src BufferProxy, srcOffset uint64, dst BufferProxy, dstOffset uint64, size uint64) error
}
