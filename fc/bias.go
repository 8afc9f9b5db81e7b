/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	bias.go: Zero-rate gyro bias estimation during the calibration window.
*/

package fc

// UpdateGyroBias advances the calibration state machine for time now and
// returns the bias-corrected gyro rate.
//
// While Calibrating, the bias is the running mean of the fresh gyro samples
// seen so far. Stale samples are neither folded in nor counted, so dropped
// reads shorten the average instead of diluting it. Once now reaches the
// window the bias is frozen for the life of the state.
func UpdateGyroBias(cfg *Config, st *EstimatorState, imu *IMUMeasurement, now float32) Vec3 {
	if st.Phase == Calibrating && now >= cfg.CalibrationWindow {
		st.Phase = Armed
	}
	if st.Phase == Calibrating && imu.Updated {
		st.biasSamples++
		st.GyroBias = st.GyroBias.Add(imu.RateGyro.Sub(st.GyroBias).Scale(1 / float32(st.biasSamples)))
	}
	return imu.RateGyro.Sub(st.GyroBias)
}
