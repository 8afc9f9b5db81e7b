/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	attitude.go: Complementary filter for roll/pitch, gyro integration for yaw.
*/

package fc

// EstimateAttitude propagates roll, pitch and yaw with the corrected rate and
// pulls roll/pitch towards the accelerometer tilt:
//
//	est = (1-rho)(est + rate*dt) + rho*(accel/g)
//
// The accelerometer term is the small-angle g*sin(angle) approximation:
// roll from +y, pitch from -x. Yaw has no absolute reference and drifts.
// Nothing is updated when the IMU reading is stale.
func EstimateAttitude(cfg *Config, st *EstimatorState, imu *IMUMeasurement, rate Vec3) {
	if !imu.Updated {
		return
	}
	rho := cfg.AttitudeMix
	dt := cfg.DT
	st.Roll = (1-rho)*(st.Roll+rate.X*dt) + rho*(imu.Accelerometer.Y/cfg.Gravity)
	st.Pitch = (1-rho)*(st.Pitch+rate.Y*dt) + rho*(-imu.Accelerometer.X/cfg.Gravity)
	st.Yaw += rate.Z * dt
}
