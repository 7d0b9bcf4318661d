// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package renderer

import (
	"fmt"

	"honnef.co/go/color"
	"honnef.co/go/drape/encoding"
)

const (
	DefaultCapacity    = 50
	DefaultBindingName = "DrapedLines"
	DefaultLabel       = "draped lines"
)

// MaxUniformBindingSize is the default maxUniformBufferBindingSize limit of
// WebGPU. The device buffer is bound as a whole and must not exceed it.
const MaxUniformBindingSize = 65536

// MaxCapacity is the largest capacity whose buffer fits in
// MaxUniformBindingSize.
const MaxCapacity = (MaxUniformBindingSize - encoding.HeaderSize) / encoding.LineSize

// CopyPolicy controls how much of the staging buffer is copied to the device
// buffer each frame.
type CopyPolicy uint8

const (
	// CopyFull copies the whole buffer, header and every slot, whether it
	// is in use or not.
	CopyFull CopyPolicy = iota
	// CopyActive copies the header and the slots written this frame.
	CopyActive
)

func (p CopyPolicy) String() string {
	switch p {
	case CopyFull:
		return "full"
	case CopyActive:
		return "active"
	default:
		return fmt.Sprintf("CopyPolicy(%d)", p)
	}
}

// ParseCopyPolicy parses the output of CopyPolicy.String.
func ParseCopyPolicy(s string) (CopyPolicy, error) {
	switch s {
	case "full", "":
		return CopyFull, nil
	case "active":
		return CopyActive, nil
	default:
		return 0, fmt.Errorf("unknown copy policy %q", s)
	}
}

type Config struct {
	// Maximum number of lines per frame. Lines beyond it are dropped.
	Capacity int
	// Name the device buffer is bound under.
	BindingName string
	// Prefix for buffer labels.
	Label      string
	CopyPolicy CopyPolicy
	// Options passed to encoding.PackWithOptions.
	Pack encoding.PackOptions
}

func DefaultConfig() Config {
	return Config{
		Capacity:    DefaultCapacity,
		BindingName: DefaultBindingName,
		Label:       DefaultLabel,
		CopyPolicy:  CopyFull,
	}
}

// WithOverrideColor returns a copy of cfg that packs every line with c
// instead of its own color.
func (cfg Config) WithOverrideColor(c color.Color) Config {
	cfg.Pack.OverrideColor = &c
	return cfg
}

func (cfg *Config) Validate() error {
	if cfg.Capacity <= 0 {
		return fmt.Errorf("%w: %d is not positive", ErrInvalidCapacity, cfg.Capacity)
	}
	if cfg.Capacity > MaxCapacity {
		return fmt.Errorf("%w: %d lines need %d bytes, more than the %d bytes a uniform binding may hold",
			ErrInvalidCapacity, cfg.Capacity, encoding.BufferSize(cfg.Capacity), MaxUniformBindingSize)
	}
	if cfg.BindingName == "" {
		return fmt.Errorf("renderer: empty binding name")
	}
	switch cfg.CopyPolicy {
	case CopyFull, CopyActive:
	default:
		return fmt.Errorf("renderer: invalid copy policy %s", cfg.CopyPolicy)
	}
	return nil
}
