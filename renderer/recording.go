// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"fmt"
	"sync/atomic"
)

var resourceID atomic.Uint64

func nextResourceID() ResourceID {
	return ResourceID(resourceID.Add(1))
}

type ResourceID uint64

// BufferProxy names a buffer independently of the device it lives on. Engines
// map proxies to their own buffer objects.
type BufferProxy struct {
	Size uint64
	ID   ResourceID
	Name string
}

func NewBufferProxy(size uint64, name string) BufferProxy {
	id := nextResourceID()
	return BufferProxy{size, id, name}
}

func (p BufferProxy) String() string {
	return fmt.Sprintf("%s#%d (%d bytes)", p.Name, p.ID, p.Size)
}

// Recording is a FIFO of commands that are recorded during one phase of a
// frame and executed against a CommandContext during a later one.
type Recording struct {
	Commands []Command
}

func (rec *Recording) push(cmd Command) {
	rec.Commands = append(rec.Commands, cmd)
}

func (rec *Recording) CopyBufferToBuffer(
	src BufferProxy,
	srcOffset uint64,
	dst BufferProxy,
	dstOffset uint64,
	size uint64,
) {
	rec.push(&CopyBuffer{
		Src:       src,
		SrcOffset: srcOffset,
		Dst:       dst,
		DstOffset: dstOffset,
		Size:      size,
	})
}

// Len returns the number of pending commands.
func (rec *Recording) Len() int {
	return len(rec.Commands)
}

// Reset drops all pending commands without executing them.
func (rec *Recording) Reset() {
	clear(rec.Commands)
	rec.Commands = rec.Commands[:0]
}

// Drain executes all pending commands in the order they were recorded and
// empties the recording. If a command fails, it and all commands after it are
// dropped and the error is returned; no command ever executes twice.
func (rec *Recording) Drain(ctx CommandContext) error {
	defer rec.Reset()
	for i, cmd := range rec.Commands {
		switch cmd := cmd.(type) {
		case *CopyBuffer:
			if err := ctx.CopyBufferToBuffer(cmd.Src, cmd.SrcOffset, cmd.Dst, cmd.DstOffset, cmd.Size); err != nil {
				return fmt.Errorf("command %d: copying %s to %s: %w", i, cmd.Src, cmd.Dst, err)
			}
		default:
			panic(fmt.Sprintf("unhandled command %T", cmd))
		}
	}
	return nil
}

type Command interface {
	isCommand()
}

func (*CopyBuffer) isCommand() {}

// CopyBuffer copies Size bytes from Src to Dst.
type CopyBuffer struct {
	Src       BufferProxy
	SrcOffset uint64
	Dst       BufferProxy
	DstOffset uint64
	Size      uint64
}
