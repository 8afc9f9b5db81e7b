/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	actuator.go: Propeller force -> motor speed -> PWM command.
*/

package fc

import "math"

// SpeedFromForce inverts the quadratic thrust model f = k*w^2. A propeller
// cannot push, so non-positive forces map to zero speed.
func SpeedFromForce(cfg *Config, force float32) float32 {
	if force <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(force / cfg.ThrustConstant)))
}

// PWMCommandFromSpeed is the calibrated affine motor model, rounded to the
// nearest duty unit.
func PWMCommandFromSpeed(cfg *Config, speed float32) int32 {
	return int32(math.Round(float64(cfg.PWMConstA + cfg.PWMConstB*speed)))
}

// SpeedFromPWM inverts PWMCommandFromSpeed, ignoring the rounding.
func SpeedFromPWM(cfg *Config, pwm int32) float32 {
	return (float32(pwm) - cfg.PWMConstA) / cfg.PWMConstB
}

// MapActuators converts the four propeller forces into PWM commands.
func MapActuators(cfg *Config, forces [4]float32) (cmd [4]int32) {
	for i, f := range forces {
		cmd[i] = PWMCommandFromSpeed(cfg, SpeedFromForce(cfg, f))
	}
	return cmd
}
