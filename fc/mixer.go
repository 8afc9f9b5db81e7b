/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	mixer.go: Thrust and torque allocation for the X frame.
*/

package fc

// BodyTorques multiplies the commanded angular acceleration by the diagonal
// inertia. Cross coupling is ignored.
func BodyTorques(cfg *Config, cmdAngAcc Vec3) Vec3 {
	return Vec3{
		X: cfg.InertiaXX * cmdAngAcc.X,
		Y: cfg.InertiaYY * cmdAngAcc.Y,
		Z: cfg.InertiaZZ * cmdAngAcc.Z,
	}
}

// MixMotors splits total thrust and body torques into the four propeller
// forces, ordered +x+y, +x-y, -x-y, -x+y. Motors 1 and 3 produce positive
// yaw torque. No saturation or redistribution is applied.
func MixMotors(cfg *Config, thrust float32, torque Vec3) (forces [4]float32) {
	nx := torque.X / cfg.ArmLength
	ny := torque.Y / cfg.ArmLength
	nz := torque.Z / cfg.Kappa

	forces[MotorPXPY] = (thrust + nx - ny + nz) / 4
	forces[MotorPXNY] = (thrust - nx - ny - nz) / 4
	forces[MotorNXNY] = (thrust - nx + ny + nz) / 4
	forces[MotorNXPY] = (thrust + nx + ny - nz) / 4
	return forces
}

// AllocationTorques is the forward model of MixMotors: it returns the total
// thrust and body torques produced by the four propeller forces.
func AllocationTorques(cfg *Config, forces [4]float32) (thrust float32, torque Vec3) {
	f1, f2, f3, f4 := forces[MotorPXPY], forces[MotorPXNY], forces[MotorNXNY], forces[MotorNXPY]
	thrust = f1 + f2 + f3 + f4
	torque = Vec3{
		X: cfg.ArmLength * (f1 - f2 - f3 + f4),
		Y: cfg.ArmLength * (-f1 - f2 + f3 + f4),
		Z: cfg.Kappa * (f1 - f2 + f3 - f4),
	}
	return thrust, torque
}
