/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	heightvel.go: Range sensor and optical flow fusion into height and velocity.
*/

package fc

import "math"

func cosf(x float32) float32 {
	return float32(math.Cos(float64(x)))
}

func blend(est, meas, mix float32) float32 {
	return (1-mix)*est + mix*meas
}

// EstimateHeightVelocity propagates height with the vertical velocity every
// tick and corrects it from fresh range and flow readings.
//
// A range reading is accepted only when Updated and below MaxRange. It is
// tilt compensated (range*cos(roll)*cos(pitch)) and blended with MixHeight;
// the vertical velocity is blended with the finite difference against the
// previous accepted reading. The difference is skipped when no time has
// elapsed since that reading.
//
// A flow reading is converted only while cos(roll)*cos(pitch) is above
// FlowTiltGuard, otherwise the horizontal velocity is held. Flow x is
// compensated by roll rate and flow y by pitch rate, then scaled by the
// distance along the sensor axis (height/tilt) and blended with MixHorizVel.
func EstimateHeightVelocity(cfg *Config, st *EstimatorState, in *SensorSnapshot, rate Vec3) {
	st.Height += st.Velocity.Z * cfg.DT

	tilt := cosf(st.Roll) * cosf(st.Pitch)

	if in.Height.Updated && in.Height.Value < cfg.MaxRange {
		hMeas := in.Height.Value * tilt
		st.Height = blend(st.Height, hMeas, cfg.MixHeight)

		if elapsed := in.CurrentTime - st.LastHeightTime; elapsed > 0 {
			vMeas := (hMeas - st.LastHeightMeas) / elapsed
			st.Velocity.Z = blend(st.Velocity.Z, vMeas, cfg.MixHeight)
		}
		st.LastHeightMeas = hMeas
		st.LastHeightTime = in.CurrentTime
	}

	if in.OpticalFlow.Updated && tilt > cfg.FlowTiltGuard {
		dist := st.Height / tilt
		vx := (-in.OpticalFlow.ValueX + rate.X) * dist
		vy := (-in.OpticalFlow.ValueY - rate.Y) * dist
		st.Velocity.X = blend(st.Velocity.X, vx, cfg.MixHorizVel)
		st.Velocity.Y = blend(st.Velocity.Y, vy, cfg.MixHorizVel)
	}
}
