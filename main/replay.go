/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	replay.go: Run a recorded trace through a fresh estimator and compare.
*/

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/b3nn0/hoverfc/fc"
	humanize "github.com/dustin/go-humanize"
)

type replaySummary struct {
	Ticks      uint64
	Mismatches uint64
	FirstBad   int64 // tick of the first mismatch, -1 if none
	Phase      fc.CalibrationPhase
	Final      fc.ActuationCommand
	Height     float32
	Duration   float32 // s of recorded time
}

// replayTrace feeds every recorded snapshot through fc.Tick and counts the
// ticks whose motor command differs from the recorded one.
func replayTrace(cfg *fc.Config, src *traceSource) (replaySummary, error) {
	sum := replaySummary{FirstBad: -1}
	st := fc.NewEstimatorState(cfg)
	var first float32
	for {
		snap, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, err
		}
		if sum.Ticks == 0 {
			first = snap.CurrentTime
		}
		sum.Duration = snap.CurrentTime - first

		cmd := fc.Tick(cfg, st, &snap)
		if cmd.Motors != src.Recorded() {
			if sum.FirstBad < 0 {
				sum.FirstBad = int64(sum.Ticks)
			}
			sum.Mismatches++
		}
		sum.Final = cmd
		sum.Ticks++
	}
	sum.Phase = st.Phase
	sum.Height = st.Height
	return sum, nil
}

func printReplaySummary(w io.Writer, s replaySummary) {
	fmt.Fprintf(w, "replayed %s ticks (%.2f s), final phase %s, height %.3f m\n",
		humanize.Comma(int64(s.Ticks)), s.Duration, s.Phase, s.Height)
	fmt.Fprintf(w, "final motors: %v\n", s.Final.Motors)
	if s.Mismatches == 0 {
		fmt.Fprintln(w, "all motor commands match the recording")
		return
	}
	fmt.Fprintf(w, "%s mismatching ticks, first at tick %d\n", humanize.Comma(int64(s.Mismatches)), s.FirstBad)
}

func runReplay(opt *HoverOpt, fname string, w io.Writer) error {
	src, err := newTraceSource(fname)
	if err != nil {
		return fmt.Errorf("replay %s: %w", fname, err)
	}
	sum, err := replayTrace(&opt.Vehicle, src)
	if err != nil {
		return err
	}
	printReplaySummary(w, sum)
	if sum.Mismatches > 0 {
		return fmt.Errorf("replay diverged on %d of %d ticks", sum.Mismatches, sum.Ticks)
	}
	return nil
}
