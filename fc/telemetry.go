/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	telemetry.go: Bounded debug outputs.
*/

package fc

import "golang.org/x/exp/constraints"

func clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// telemetryValue bounds v to [-TelemetryMax, TelemetryMax]. NaN becomes 0.
func telemetryValue(v float32) float32 {
	if v != v {
		return 0
	}
	return clamp(v, -TelemetryMax, TelemetryMax)
}

func (c *ActuationCommand) setTelemetry(slot int, v float32) {
	c.Telemetry[slot] = telemetryValue(v)
}
