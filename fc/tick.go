/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	tick.go: The per-tick pipeline.
*/

// Package fc is the fixed-rate flight-control core of a quadrotor: one call
// to Tick per sensor snapshot estimates attitude, height and horizontal
// velocity, computes the stabilizing command and converts it into four
// motor PWM values.
//
// Tick does not allocate, block or log. It is not reentrant: the caller owns
// the EstimatorState and must call Tick exactly once per Config.DT.
package fc

// Tick runs one full estimation and control step and returns the motor
// commands. Stages run in a fixed order, each consuming the previous one's
// output.
func Tick(cfg *Config, st *EstimatorState, in *SensorSnapshot) (out ActuationCommand) {
	rate := UpdateGyroBias(cfg, st, &in.IMU, in.CurrentTime)
	st.RateCorrected = rate

	EstimateAttitude(cfg, st, &in.IMU, rate)
	EstimateHeightVelocity(cfg, st, in, rate)

	sp, corrX, corrY := DriftCorrection(cfg, st)
	_, desNormAcc := HeightCommand(cfg, st)
	_, cmdAngAcc := AttitudeCommand(cfg, st, sp, rate)

	forces := MixMotors(cfg, desNormAcc*cfg.Mass, BodyTorques(cfg, cmdAngAcc))
	out.Motors = MapActuators(cfg, forces)

	out.setTelemetry(TelRoll, st.Roll)
	out.setTelemetry(TelPitch, st.Pitch)
	out.setTelemetry(TelYaw, st.Yaw)
	out.setTelemetry(TelVelX, st.Velocity.X)
	out.setTelemetry(TelVelY, st.Velocity.Y)
	out.setTelemetry(TelVelZ, st.Velocity.Z)
	out.setTelemetry(TelHeight, st.Height)
	out.setTelemetry(TelDesRoll, sp.Roll)
	out.setTelemetry(TelDesPitch, sp.Pitch)
	out.setTelemetry(TelDesNormAcc, desNormAcc)
	out.setTelemetry(TelDriftCorrX, corrX)
	out.setTelemetry(TelDriftCorrY, corrY)

	st.Ticks++
	return out
}
