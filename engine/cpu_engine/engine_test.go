// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cpu_engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"honnef.co/go/drape/renderer"
)

func createBuffer(t *testing.T, eng *Engine, size uint64, usage renderer.BufferUsage, mapped bool) renderer.BufferProxy {
	t.Helper()
	p := renderer.NewBufferProxy(size, "test")
	require.NoError(t, eng.CreateBuffer(&renderer.BufferDescriptor{
		Buffer:           p,
		Usage:            usage,
		MappedAtCreation: mapped,
	}))
	return p
}

func TestMapState(t *testing.T) {
	eng := New()
	p := createBuffer(t, eng, 32, renderer.BufferUsageMapWrite|renderer.BufferUsageCopySrc, true)
	assert.True(t, eng.Mapped(p))

	mem, err := eng.MappedRange(p)
	require.NoError(t, err)
	require.Len(t, mem, 32)
	mem[0] = 42

	_, err = eng.MapWrite(p)
	assert.ErrorIs(t, err, renderer.ErrAlreadyMapped)

	eng.Unmap(p)
	assert.False(t, eng.Mapped(p))
	_, err = eng.MappedRange(p)
	assert.ErrorIs(t, err, renderer.ErrNotMapped)
	assert.Panics(t, func() { eng.Unmap(p) })

	mem, err = eng.MapWrite(p)
	require.NoError(t, err)
	assert.Equal(t, byte(42), mem[0])
}

func TestMapUsage(t *testing.T) {
	eng := New()
	p := createBuffer(t, eng, 16, renderer.BufferUsageUniform|renderer.BufferUsageCopyDst, false)
	_, err := eng.MapWrite(p)
	assert.ErrorIs(t, err, renderer.ErrMapUsage)

	err = eng.CreateBuffer(&renderer.BufferDescriptor{
		Buffer: renderer.NewBufferProxy(16, "bad"),
		Usage:  renderer.BufferUsageMapWrite | renderer.BufferUsageUniform,
	})
	assert.ErrorIs(t, err, renderer.ErrAllocation)
}

func TestUnknownBuffer(t *testing.T) {
	eng := New()
	p := renderer.NewBufferProxy(16, "missing")
	_, err := eng.MapWrite(p)
	assert.ErrorIs(t, err, renderer.ErrUnknownBuffer)
	_, err = eng.Contents(p)
	assert.ErrorIs(t, err, renderer.ErrUnknownBuffer)
	assert.Panics(t, func() { eng.Bind("x", p) })
	assert.NotPanics(t, func() { eng.DestroyBuffer(p) })
}

func TestBudget(t *testing.T) {
	eng := New()
	eng.MaxBytes = 48
	a := createBuffer(t, eng, 32, renderer.BufferUsageCopyDst, false)
	err := eng.CreateBuffer(&renderer.BufferDescriptor{
		Buffer: renderer.NewBufferProxy(32, "b"),
		Usage:  renderer.BufferUsageCopyDst,
	})
	assert.ErrorIs(t, err, renderer.ErrAllocation)
	assert.Equal(t, uint64(32), eng.AllocatedBytes())

	eng.DestroyBuffer(a)
	assert.Equal(t, uint64(0), eng.AllocatedBytes())
	createBuffer(t, eng, 48, renderer.BufferUsageCopyDst, false)
}

func TestCopyOnSubmit(t *testing.T) {
	eng := New()
	src := createBuffer(t, eng, 16, renderer.BufferUsageMapWrite|renderer.BufferUsageCopySrc, true)
	dst := createBuffer(t, eng, 32, renderer.BufferUsageCopyDst|renderer.BufferUsageUniform, false)
	mem, err := eng.MappedRange(src)
	require.NoError(t, err)
	copy(mem, []byte("0123456789abcdef"))
	eng.Unmap(src)

	ctx := eng.NewContext()
	require.NoError(t, ctx.CopyBufferToBuffer(src, 4, dst, 16, 8))
	data, _ := eng.Contents(dst)
	assert.Equal(t, make([]byte, 32), data)

	require.NoError(t, eng.Submit(ctx))
	data, _ = eng.Contents(dst)
	assert.Equal(t, []byte("456789ab"), data[16:24])
	assert.Equal(t, make([]byte, 16), data[:16])
	assert.Panics(t, func() { eng.Submit(ctx) })
}

func TestCopyValidation(t *testing.T) {
	eng := New()
	src := createBuffer(t, eng, 16, renderer.BufferUsageCopySrc, false)
	dst := createBuffer(t, eng, 16, renderer.BufferUsageCopyDst, false)
	ctx := eng.NewContext()
	assert.Error(t, ctx.CopyBufferToBuffer(dst, 0, src, 0, 16))
	assert.Error(t, ctx.CopyBufferToBuffer(src, 0, dst, 0, 6))
	assert.Error(t, ctx.CopyBufferToBuffer(src, 8, dst, 0, 16))
	assert.ErrorIs(t, ctx.CopyBufferToBuffer(src, 0, renderer.NewBufferProxy(16, "x"), 0, 16), renderer.ErrUnknownBuffer)
	assert.Empty(t, ctx.Copies)
}

func TestSubmitMapped(t *testing.T) {
	eng := New()
	src := createBuffer(t, eng, 16, renderer.BufferUsageMapWrite|renderer.BufferUsageCopySrc, true)
	dst := createBuffer(t, eng, 16, renderer.BufferUsageCopyDst, false)
	ctx := eng.NewContext()
	require.NoError(t, ctx.CopyBufferToBuffer(src, 0, dst, 0, 16))
	assert.Error(t, eng.Submit(ctx))
}

func TestBindings(t *testing.T) {
	eng := New()
	p := createBuffer(t, eng, 16, renderer.BufferUsageUniform, false)
	eng.Bind("Lines", p)
	got, ok := eng.Bound("Lines")
	require.True(t, ok)
	assert.Equal(t, p, got)

	eng.DestroyBuffer(p)
	_, ok = eng.Bound("Lines")
	assert.False(t, ok)
	assert.Equal(t, 0, eng.NumBuffers())
}
