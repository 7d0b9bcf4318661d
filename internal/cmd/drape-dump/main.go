// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Command drape-dump streams a scene of draped lines through the CPU engine
// and prints the contents of the resulting uniform buffer.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"honnef.co/go/drape/encoding"
	"honnef.co/go/drape/engine/cpu_engine"
	"honnef.co/go/drape/profiler"
	"honnef.co/go/drape/renderer"
)

func main() {
	var (
		frames   int
		capacity int
		verbose  bool
		profile  bool
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-v] [-frames n] [-capacity n] [scene.toml]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.IntVar(&frames, "frames", 1, "Number of `frames` to render")
	flag.IntVar(&capacity, "capacity", 0, "Override the scene's line `capacity`")
	flag.BoolVar(&verbose, "v", false, "Log buffer management")
	flag.BoolVar(&profile, "profile", false, "Print CPU timings")
	flag.Parse()

	dief := func(f string, v ...any) {
		fmt.Fprintf(os.Stderr, f, v...)
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}

	if len(flag.Args()) > 1 || frames < 1 {
		flag.Usage()
		os.Exit(2)
	}

	if verbose {
		renderer.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	var sf *sceneFile
	var err error
	if len(flag.Args()) == 1 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			dief("Couldn't open scene: %s", err)
		}
		sf, err = parseSceneFile(f)
		f.Close()
		if err != nil {
			dief("Couldn't parse scene: %s", err)
		}
	} else {
		sf, err = loadDefaultScene()
		if err != nil {
			panic(err)
		}
	}
	if capacity != 0 {
		sf.Capacity = capacity
	}

	var rec *profiler.Recorder
	if profile {
		rec = profiler.NewRecorder()
	}
	res, err := run(sf, frames, rec)
	if err != nil {
		dief("%s", err)
	}
	printResult(os.Stdout, res)
	if rec != nil {
		for _, r := range rec.Results(nil) {
			fmt.Fprintf(os.Stderr, "%*s%s: %s\n", r.Depth*2, "", r.Label, r.Duration)
		}
	}
}

type result struct {
	header encoding.CountHeader
	lines  []encoding.PackedLine
	stats  renderer.Stats
	size   int
}

func run(sf *sceneFile, frames int, rec *profiler.Recorder) (*result, error) {
	cfg, err := sf.config()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	s, err := sf.scene()
	if err != nil {
		return nil, fmt.Errorf("invalid scene: %w", err)
	}

	eng := cpu_engine.New()
	node, err := renderer.NewNode(cfg)
	if err != nil {
		return nil, err
	}
	defer node.Release(eng)

	for i := range frames {
		g := rec.Start(fmt.Sprintf("frame %d", i))
		if g != nil {
			node.SetProfiler(g)
		}
		if err := node.CollectAndWrite(eng, s.Lines()); err != nil {
			return nil, err
		}
		ctx := eng.NewContext()
		if err := node.Flush(ctx); err != nil {
			return nil, err
		}
		if err := eng.Submit(ctx); err != nil {
			return nil, err
		}
		g.End()
	}

	dev, _ := node.Buffers()
	data, err := eng.Contents(dev)
	if err != nil {
		return nil, err
	}
	h, lines, err := encoding.Decode(data)
	if err != nil {
		return nil, err
	}
	return &result{
		header: h,
		lines:  lines,
		stats:  node.Stats(),
		size:   len(data),
	}, nil
}

func printResult(w io.Writer, res *result) {
	fmt.Fprintf(w, "buffer: %d bytes, %d lines\n", res.size, res.header.Count)
	for i, l := range res.lines {
		fmt.Fprintf(w, "%3d: p0=%v p1=%v width=%g color=%v plane=%v\n",
			i, l.Point0, l.Point1, l.Width[0], l.Color, l.PlaneDir)
	}
	st := res.stats
	fmt.Fprintf(w, "frames written: %d, skipped: %d, lines truncated: %d, copies: %d\n",
		st.FramesWritten, st.FramesSkipped, st.LinesTruncated, st.CopiesFlushed)
}
