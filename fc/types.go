/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	types.go: Per-tick input snapshot and actuation output.
*/

package fc

// Vec3 is a body-frame vector. X, Y, Z match the IMU axes.
type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(k float32) Vec3 {
	return Vec3{v.X * k, v.Y * k, v.Z * k}
}

type BatteryVoltage struct {
	Value   float32 // V
	Updated bool
}

type IMUMeasurement struct {
	Accelerometer Vec3 // m/s^2, specific force in the body frame
	RateGyro      Vec3 // rad/s
	Updated       bool
}

type JoystickInput struct {
	Axes    [4]float32
	Buttons [6]bool
	Updated bool
}

type OpticalFlowSensor struct {
	ValueX, ValueY float32 // rad/s
	Updated        bool
}

type HeightSensor struct {
	Value   float32 // Slant range along the body -z axis, m.
	Updated bool
}

type Extra struct {
	IMUTemperature float32 // °C
}

// SensorSnapshot is one synchronized set of readings for a single tick.
// A sensor whose Updated flag is false carries its last known value, which
// must never be used as new evidence.
type SensorSnapshot struct {
	CurrentTime    float32 // s since start
	BatteryVoltage BatteryVoltage
	IMU            IMUMeasurement
	Joystick       JoystickInput
	OpticalFlow    OpticalFlowSensor
	Height         HeightSensor
	Extra          Extra
}

// Motor indices, by quadrant.
const (
	MotorPXPY = iota // +x +y
	MotorPXNY        // +x -y
	MotorNXNY        // -x -y
	MotorNXPY        // -x +y
)

// Telemetry slot assignment.
const (
	TelRoll = iota
	TelPitch
	TelYaw
	TelVelX
	TelVelY
	TelVelZ
	TelHeight
	TelDesRoll
	TelDesPitch
	TelDesNormAcc
	TelDriftCorrX
	TelDriftCorrY
)

// ActuationCommand is the output of one tick. Telemetry entries are always
// inside [-TelemetryMax, TelemetryMax].
type ActuationCommand struct {
	Motors    [4]int32
	Telemetry [TelemetryLen]float32
}
