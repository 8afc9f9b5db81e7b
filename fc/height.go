/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	height.go: Second order height hold.
*/

package fc

// HeightCommand returns the desired vertical acceleration
//
//	desAcc = -2*zeta*wn*vz - wn^2*(height - desHeight)
//
// and the mass-normalized thrust (g + desAcc)/(cos(roll)*cos(pitch)).
// The divisor is deliberately unguarded: near 90° of tilt the result grows
// without bound.
func HeightCommand(cfg *Config, st *EstimatorState) (desAcc, desNormAcc float32) {
	wn := cfg.HeightNatFreq
	zeta := cfg.HeightDamping
	desAcc = -2*zeta*wn*st.Velocity.Z - wn*wn*(st.Height-cfg.DesiredHeight)
	desNormAcc = (cfg.Gravity + desAcc) / (cosf(st.Roll) * cosf(st.Pitch))
	return desAcc, desNormAcc
}
