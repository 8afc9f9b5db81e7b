/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	drift.go: Horizontal drift cancellation.
*/

package fc

// AttitudeSetpoint is the desired attitude handed to the attitude controller.
type AttitudeSetpoint struct {
	Roll, Pitch, Yaw float32 // rad
}

// DriftCorrection runs one step of the X and Y velocity PIDs (setpoint zero,
// error = -velocity) and converts their outputs into tilt set-points:
// desRoll = corrX/g, desPitch = -corrY/g. Desired yaw is always zero.
func DriftCorrection(cfg *Config, st *EstimatorState) (sp AttitudeSetpoint, corrX, corrY float32) {
	if st.driftX == nil {
		st.resetDrift(cfg)
	}
	corrX = float32(st.driftX.UpdateDuration(float64(st.Velocity.X), st.driftDT))
	corrY = float32(st.driftY.UpdateDuration(float64(st.Velocity.Y), st.driftDT))

	sp.Roll = corrX / cfg.Gravity
	sp.Pitch = -corrY / cfg.Gravity
	return sp, corrX, corrY
}
