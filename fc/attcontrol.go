/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	attcontrol.go: Cascaded angle -> rate -> angular acceleration control.
*/

package fc

func timeConstant(actual, desired, tau float32) float32 {
	return -(actual - desired) / tau
}

// AttitudeCommand runs the two first-order loops per axis. The angle loop
// turns angle error into a desired rate; the rate loop turns rate error
// into a desired angular acceleration. It returns both.
func AttitudeCommand(cfg *Config, st *EstimatorState, sp AttitudeSetpoint, rate Vec3) (cmdRate, cmdAngAcc Vec3) {
	cmdRate = Vec3{
		X: timeConstant(st.Roll, sp.Roll, cfg.TimeConstRollAngle),
		Y: timeConstant(st.Pitch, sp.Pitch, cfg.TimeConstPitchAngle),
		Z: timeConstant(st.Yaw, sp.Yaw, cfg.TimeConstYawAngle),
	}
	cmdAngAcc = Vec3{
		X: timeConstant(rate.X, cmdRate.X, cfg.TimeConstRollRate),
		Y: timeConstant(rate.Y, cmdRate.Y, cfg.TimeConstPitchRate),
		Z: timeConstant(rate.Z, cmdRate.Z, cfg.TimeConstYawRate),
	}
	return cmdRate, cmdAngAcc
}
