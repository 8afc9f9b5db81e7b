/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	state.go: Persistent estimator/controller state, owned by the caller.
*/

package fc

import (
	"fmt"
	"time"

	"github.com/felixge/pidctrl"
)

// CalibrationPhase is the gyro bias state machine. It moves from
// Calibrating to Armed exactly once and never back.
type CalibrationPhase uint8

const (
	Calibrating CalibrationPhase = iota
	Armed
)

func (p CalibrationPhase) String() string {
	switch p {
	case Calibrating:
		return "calibrating"
	case Armed:
		return "armed"
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// EstimatorState holds everything that survives from one tick to the next.
// The zero value is the initial state; Tick is its only writer.
type EstimatorState struct {
	Phase    CalibrationPhase
	GyroBias Vec3 // rad/s

	biasSamples uint32 // fresh gyro samples averaged into GyroBias

	Roll, Pitch, Yaw float32 // rad. Yaw is never wrapped.

	Height   float32 // m
	Velocity Vec3    // m/s

	LastHeightMeas float32 // Tilt-compensated height of the last accepted range reading, m.
	LastHeightTime float32 // CurrentTime of that reading, s.

	RateCorrected Vec3   // Bias-corrected gyro rate of the last tick.
	Ticks         uint64 // Completed ticks.

	driftX, driftY *pidctrl.PIDController
	driftDT        time.Duration
}

// NewEstimatorState returns a zeroed state with its drift loops built from cfg.
func NewEstimatorState(cfg *Config) *EstimatorState {
	st := new(EstimatorState)
	st.resetDrift(cfg)
	return st
}

func (st *EstimatorState) resetDrift(cfg *Config) {
	st.driftX = newDriftController(cfg)
	st.driftY = newDriftController(cfg)
	st.driftDT = time.Duration(float64(cfg.DT) * float64(time.Second))
}

func newDriftController(cfg *Config) *pidctrl.PIDController {
	c := pidctrl.NewPIDController(cfg.DriftKp, cfg.DriftKi, cfg.DriftKd)
	c.Set(0)
	if cfg.DriftOutputLimit > 0 {
		c.SetOutputLimits(-cfg.DriftOutputLimit, cfg.DriftOutputLimit)
	}
	return c
}
