// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	copies []CopyBuffer
	failAt int
}

var errFake = errors.New("fake failure")

func (ctx *fakeContext) CopyBufferToBuffer(src BufferProxy, srcOffset uint64, dst BufferProxy, dstOffset uint64, size uint64) error {
	if ctx.failAt > 0 && len(ctx.copies)+1 == ctx.failAt {
		return errFake
	}
	ctx.copies = append(ctx.copies, CopyBuffer{src, srcOffset, dst, dstOffset, size})
	return nil
}

func TestBufferProxyIdentity(t *testing.T) {
	a := NewBufferProxy(16, "a")
	b := NewBufferProxy(16, "a")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, uint64(16), a.Size)
	assert.Contains(t, a.String(), "a#")
}

func TestRecordingOrder(t *testing.T) {
	a := NewBufferProxy(64, "a")
	b := NewBufferProxy(64, "b")
	var rec Recording
	rec.CopyBufferToBuffer(a, 0, b, 0, 16)
	rec.CopyBufferToBuffer(b, 16, a, 32, 32)
	rec.CopyBufferToBuffer(a, 48, b, 48, 16)
	require.Equal(t, 3, rec.Len())

	ctx := &fakeContext{}
	require.NoError(t, rec.Drain(ctx))
	assert.Equal(t, []CopyBuffer{
		{a, 0, b, 0, 16},
		{b, 16, a, 32, 32},
		{a, 48, b, 48, 16},
	}, ctx.copies)
	assert.Equal(t, 0, rec.Len())

	// Draining again executes nothing.
	require.NoError(t, rec.Drain(ctx))
	assert.Len(t, ctx.copies, 3)
}

func TestRecordingDrainError(t *testing.T) {
	a := NewBufferProxy(64, "a")
	b := NewBufferProxy(64, "b")
	var rec Recording
	for range 3 {
		rec.CopyBufferToBuffer(a, 0, b, 0, 64)
	}
	ctx := &fakeContext{failAt: 2}
	err := rec.Drain(ctx)
	require.ErrorIs(t, err, errFake)
	assert.Len(t, ctx.copies, 1)
	assert.Equal(t, 0, rec.Len())
}

func TestRecordingReset(t *testing.T) {
	a := NewBufferProxy(64, "a")
	var rec Recording
	rec.CopyBufferToBuffer(a, 0, a, 0, 4)
	rec.Reset()
	assert.Equal(t, 0, rec.Len())
	ctx := &fakeContext{}
	require.NoError(t, rec.Drain(ctx))
	assert.Empty(t, ctx.copies)
}

type bogusCommand struct{}

func (*bogusCommand) isCommand() {}

func TestRecordingUnknownCommand(t *testing.T) {
	rec := Recording{Commands: []Command{&bogusCommand{}}}
	assert.Panics(t, func() { rec.Drain(&fakeContext{}) })
}

func TestBufferUsageString(t *testing.T) {
	assert.Equal(t, "None", BufferUsage(0).String())
	assert.Equal(t, "MapWrite|CopySrc", (BufferUsageCopySrc | BufferUsageMapWrite).String())
	assert.Equal(t, "CopySrc|CopyDst|Uniform", (BufferUsageUniform | BufferUsageCopyDst | BufferUsageCopySrc).String())
}
