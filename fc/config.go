/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	config.go: Vehicle physical constants and controller tuning.
*/

package fc

import (
	"fmt"
	"math"
)

const (
	TickRate = 500 // Hz. The estimator integrals assume exactly this calling rate.

	TelemetryLen = 12
	TelemetryMax = 100
)

// Config groups every physical constant, filter coefficient and gain used by
// the tick pipeline. It is built once at initialization and never mutated by
// Tick.
type Config struct {
	DT                float32 `yaml:"dt" mapstructure:"dt"`                                 // Tick period, s.
	CalibrationWindow float32 `yaml:"calibration_window" mapstructure:"calibration_window"` // Gyro bias window, s.

	Gravity        float32 `yaml:"gravity" mapstructure:"gravity"`                 // m/s^2
	Mass           float32 `yaml:"mass" mapstructure:"mass"`                       // kg
	InertiaXX      float32 `yaml:"inertia_xx" mapstructure:"inertia_xx"`           // kg m^2
	InertiaYY      float32 `yaml:"inertia_yy" mapstructure:"inertia_yy"`           // kg m^2
	InertiaZZ      float32 `yaml:"inertia_zz" mapstructure:"inertia_zz"`           // kg m^2
	ArmLength      float32 `yaml:"arm_length" mapstructure:"arm_length"`           // m, per axis of the X frame
	Kappa          float32 `yaml:"kappa" mapstructure:"kappa"`                     // yaw torque / thrust, m
	ThrustConstant float32 `yaml:"thrust_constant" mapstructure:"thrust_constant"` // N/(rad/s)^2
	PWMConstA      float32 `yaml:"pwm_const_a" mapstructure:"pwm_const_a"`         // PWM offset
	PWMConstB      float32 `yaml:"pwm_const_b" mapstructure:"pwm_const_b"`         // PWM per rad/s

	AttitudeMix   float32 `yaml:"attitude_mix" mapstructure:"attitude_mix"`       // rho
	MixHeight     float32 `yaml:"mix_height" mapstructure:"mix_height"`           // required, no implicit default
	MixHorizVel   float32 `yaml:"mix_horiz_vel" mapstructure:"mix_horiz_vel"`     // required, no implicit default
	MaxRange      float32 `yaml:"max_range" mapstructure:"max_range"`             // Range readings at or above this are ignored, m.
	FlowTiltGuard float32 `yaml:"flow_tilt_guard" mapstructure:"flow_tilt_guard"` // Minimum cos(roll)cos(pitch) for flow.

	DesiredHeight float32 `yaml:"desired_height" mapstructure:"desired_height"` // m
	HeightNatFreq float32 `yaml:"height_nat_freq" mapstructure:"height_nat_freq"`
	HeightDamping float32 `yaml:"height_damping" mapstructure:"height_damping"`

	TimeConstRollAngle  float32 `yaml:"time_const_roll_angle" mapstructure:"time_const_roll_angle"`
	TimeConstPitchAngle float32 `yaml:"time_const_pitch_angle" mapstructure:"time_const_pitch_angle"`
	TimeConstYawAngle   float32 `yaml:"time_const_yaw_angle" mapstructure:"time_const_yaw_angle"`
	TimeConstRollRate   float32 `yaml:"time_const_roll_rate" mapstructure:"time_const_roll_rate"`
	TimeConstPitchRate  float32 `yaml:"time_const_pitch_rate" mapstructure:"time_const_pitch_rate"`
	TimeConstYawRate    float32 `yaml:"time_const_yaw_rate" mapstructure:"time_const_yaw_rate"`

	DriftKp          float64 `yaml:"drift_kp" mapstructure:"drift_kp"`
	DriftKi          float64 `yaml:"drift_ki" mapstructure:"drift_ki"`
	DriftKd          float64 `yaml:"drift_kd" mapstructure:"drift_kd"`
	DriftOutputLimit float64 `yaml:"drift_output_limit" mapstructure:"drift_output_limit"` // 0 = unlimited
}

// DefaultConfig returns the calibrated 32 g vehicle.
func DefaultConfig() Config {
	return Config{
		DT:                1.0 / TickRate,
		CalibrationWindow: 1.0,

		Gravity:        9.81,
		Mass:           32e-3,
		InertiaXX:      16e-6,
		InertiaYY:      16e-6,
		InertiaZZ:      29e-6,
		ArmLength:      33e-3,
		Kappa:          0.01,
		ThrustConstant: 1.0e-8,
		PWMConstA:      -6.5,
		PWMConstB:      0.044,

		AttitudeMix:   0.01,
		MixHeight:     0.3,
		MixHorizVel:   0.1,
		MaxRange:      5.0,
		FlowTiltGuard: 0.5,

		DesiredHeight: 0.5,
		HeightNatFreq: 2.0,
		HeightDamping: 0.7,

		TimeConstRollAngle:  0.12,
		TimeConstPitchAngle: 0.12,
		TimeConstYawAngle:   0.2,
		TimeConstRollRate:   0.04,
		TimeConstPitchRate:  0.04,
		TimeConstYawRate:    0.1,

		DriftKp: 1.0,
		DriftKi: 0.1,
		DriftKd: 0.0,
	}
}

// Validate reports the first parameter that would make the pipeline
// meaningless. It does not guard numeric hazards that belong to the control
// law itself (e.g. the height-control tilt divisor).
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    float32
	}{
		{"dt", c.DT},
		{"calibration_window", c.CalibrationWindow},
		{"gravity", c.Gravity},
		{"mass", c.Mass},
		{"inertia_xx", c.InertiaXX},
		{"inertia_yy", c.InertiaYY},
		{"inertia_zz", c.InertiaZZ},
		{"arm_length", c.ArmLength},
		{"kappa", c.Kappa},
		{"thrust_constant", c.ThrustConstant},
		{"pwm_const_b", c.PWMConstB},
		{"max_range", c.MaxRange},
		{"height_nat_freq", c.HeightNatFreq},
		{"time_const_roll_angle", c.TimeConstRollAngle},
		{"time_const_pitch_angle", c.TimeConstPitchAngle},
		{"time_const_yaw_angle", c.TimeConstYawAngle},
		{"time_const_roll_rate", c.TimeConstRollRate},
		{"time_const_pitch_rate", c.TimeConstPitchRate},
		{"time_const_yaw_rate", c.TimeConstYawRate},
	}
	for _, p := range positive {
		if !(p.v > 0) || math.IsInf(float64(p.v), 0) {
			return fmt.Errorf("%s must be positive and finite, got %v", p.name, p.v)
		}
	}

	mixes := []struct {
		name string
		v    float32
	}{
		{"attitude_mix", c.AttitudeMix},
		{"mix_height", c.MixHeight},
		{"mix_horiz_vel", c.MixHorizVel},
	}
	for _, m := range mixes {
		if !(m.v > 0 && m.v <= 1) {
			return fmt.Errorf("%s must be in (0, 1], got %v", m.name, m.v)
		}
	}

	if c.FlowTiltGuard < 0 || c.FlowTiltGuard >= 1 {
		return fmt.Errorf("flow_tilt_guard must be in [0, 1), got %v", c.FlowTiltGuard)
	}
	if c.HeightDamping < 0 {
		return fmt.Errorf("height_damping must not be negative, got %v", c.HeightDamping)
	}
	if c.DriftOutputLimit < 0 {
		return fmt.Errorf("drift_output_limit must not be negative, got %v", c.DriftOutputLimit)
	}
	return nil
}
