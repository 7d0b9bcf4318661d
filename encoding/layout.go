// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package encoding

import (
	"encoding/binary"
	"fmt"
	"math"
	"structs"

	"honnef.co/go/safeish"
)

// Uniform buffers require every member to start on a 16 byte boundary. Each
// field of the packed types below occupies a full vec4 slot, even when
// logically smaller.
const slotSize = 16

const (
	// HeaderSize is the size of CountHeader in bytes.
	HeaderSize = 16
	// LineSize is the size of PackedLine in bytes.
	LineSize = 80
)

// Field offsets within PackedLine.
const (
	OffsetPoint0   = 0
	OffsetPoint1   = 16
	OffsetWidth    = 32
	OffsetColor    = 48
	OffsetPlaneDir = 64
)

// CountHeader precedes the line array and holds the number of valid entries.
//
// This data structure must be kept in sync with the DrapedLines uniform block
// of the consuming shader.
type CountHeader struct {
	_ structs.HostLayout

	Count uint32
	_     [3]uint32
}

// PackedLine is the GPU representation of a single draped line.
//
// This data structure must be kept in sync with the DrapedLines uniform block
// of the consuming shader.
type PackedLine struct {
	_ structs.HostLayout

	// World space position, w = 1.
	Point0 [4]float32
	// World space position, w = 1.
	Point1 [4]float32
	// Width in the first component, the rest is padding.
	Width [4]float32
	// Linear RGBA.
	Color [4]float32
	// World space direction of the drape plane's normal, w = 0.
	PlaneDir [4]float32
}

// BufferSize returns the size in bytes of a buffer holding a header and
// capacity lines.
func BufferSize(capacity int) uint64 {
	return HeaderSize + uint64(capacity)*LineSize
}

// LineOffset returns the byte offset of the i-th line in the buffer.
func LineOffset(i int) uint64 {
	return HeaderSize + uint64(i)*LineSize
}

// PutHeader writes h to the start of dst. Like PutLine, it assumes a
// little-endian host.
func PutHeader(dst []byte, h CountHeader) {
	if len(dst) < HeaderSize {
		panic(fmt.Sprintf("header slot too small: %d bytes", len(dst)))
	}
	// Padding is always zero.
	h = CountHeader{Count: h.Count}
	copy(dst[:HeaderSize], h.Bytes())
}

// PutLine writes l to the start of dst. The in-memory representation of
// PackedLine is copied verbatim, which matches the wire format on
// little-endian hosts.
func PutLine(dst []byte, l *PackedLine) {
	if len(dst) < LineSize {
		panic(fmt.Sprintf("line slot too small: %d bytes", len(dst)))
	}
	copy(dst[:LineSize], l.Bytes())
}

// Bytes returns the in-memory representation of l.
func (l *PackedLine) Bytes() []byte {
	return safeish.AsBytes(l)
}

// Bytes returns the in-memory representation of h.
func (h *CountHeader) Bytes() []byte {
	return safeish.AsBytes(h)
}

// DecodeHeader reads a CountHeader from the start of src.
func DecodeHeader(src []byte) CountHeader {
	return CountHeader{Count: binary.LittleEndian.Uint32(src[:HeaderSize])}
}

// DecodeLine reads a PackedLine from the start of src.
func DecodeLine(src []byte) PackedLine {
	_ = src[LineSize-1]
	return PackedLine{
		Point0:   vec4(src[OffsetPoint0:]),
		Point1:   vec4(src[OffsetPoint1:]),
		Width:    vec4(src[OffsetWidth:]),
		Color:    vec4(src[OffsetColor:]),
		PlaneDir: vec4(src[OffsetPlaneDir:]),
	}
}

// Decode reads a whole buffer: the header followed by as many lines as the
// header announces. It returns an error if the buffer is too short for the
// announced count.
func Decode(src []byte) (CountHeader, []PackedLine, error) {
	if len(src) < HeaderSize {
		return CountHeader{}, nil, fmt.Errorf("buffer of %d bytes has no room for a header", len(src))
	}
	h := DecodeHeader(src)
	if end := LineOffset(int(h.Count)); end > uint64(len(src)) {
		return h, nil, fmt.Errorf("header announces %d lines, but buffer only has %d bytes", h.Count, len(src))
	}
	lines := make([]PackedLine, h.Count)
	for i := range lines {
		lines[i] = DecodeLine(src[LineOffset(i):])
	}
	return h, lines, nil
}

func vec4(src []byte) [4]float32 {
	_ = src[slotSize-1]
	var v [4]float32
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return v
}
