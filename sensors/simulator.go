package sensors

import (
	"math"
	"math/rand"

	"github.com/b3nn0/hoverfc/fc"
)

// SimConfig describes the simulated vehicle and its sensors.
type SimConfig struct {
	Vehicle fc.Config `yaml:"-" mapstructure:"-"`

	GyroBias       fc.Vec3 `yaml:"gyro_bias" mapstructure:"gyro_bias"`               // rad/s, constant
	GyroNoise      float32 `yaml:"gyro_noise" mapstructure:"gyro_noise"`             // rad/s, 1 sigma
	AccelNoise     float32 `yaml:"accel_noise" mapstructure:"accel_noise"`           // m/s^2, 1 sigma
	RangeRate      int     `yaml:"range_rate" mapstructure:"range_rate"`             // Hz
	FlowRate       int     `yaml:"flow_rate" mapstructure:"flow_rate"`               // Hz
	InitialHeight  float32 `yaml:"initial_height" mapstructure:"initial_height"`     // m
	InitialVel     fc.Vec3 `yaml:"initial_velocity" mapstructure:"initial_velocity"` // m/s, world frame
	BatteryVoltage float32 `yaml:"battery_voltage" mapstructure:"battery_voltage"`   // V
	Seed           int64   `yaml:"seed" mapstructure:"seed"`
}

// DefaultSimConfig is a noise-free vehicle sitting on the ground.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Vehicle:        fc.DefaultConfig(),
		RangeRate:      100,
		FlowRate:       100,
		BatteryVoltage: 4.0,
	}
}

// Simulator is a rigid-body quadrotor plant closed around the core. It is
// both a Source and a MotorSink: Write latches the motor command, and the
// next call to Next advances the plant one tick under that command before
// sampling its sensors.
//
// Frame: x forward, y left, z up. Positive roll tilts thrust towards +x,
// positive pitch towards -y. Euler rates are taken equal to body rates.
type Simulator struct {
	cfg SimConfig
	rng *rand.Rand

	ticks  uint64
	time   float32
	pos    fc.Vec3 // world, m
	vel    fc.Vec3 // world, m/s
	att    fc.Vec3 // roll, pitch, yaw, rad
	rate   fc.Vec3 // body, rad/s
	motors [4]int32

	rangeEvery, flowEvery uint64
	lastRange             float32
	lastFlow              fc.OpticalFlowSensor
	closed                bool
}

// NewSimulator returns a simulator at rest at cfg.InitialHeight.
func NewSimulator(cfg SimConfig) *Simulator {
	s := &Simulator{
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		pos:        fc.Vec3{Z: cfg.InitialHeight},
		vel:        cfg.InitialVel,
		rangeEvery: divider(cfg.RangeRate),
		flowEvery:  divider(cfg.FlowRate),
	}
	// Motors off: below zero speed on the calibrated vehicle.
	for i := range s.motors {
		s.motors[i] = fc.PWMCommandFromSpeed(&cfg.Vehicle, 0)
	}
	return s
}

func divider(rate int) uint64 {
	if rate <= 0 || rate >= fc.TickRate {
		return 1
	}
	return uint64(fc.TickRate / rate)
}

// Write latches the motor command for the next step.
func (s *Simulator) Write(cmd fc.ActuationCommand) error {
	if s.closed {
		return ErrClosed
	}
	s.motors = cmd.Motors
	return nil
}

// Next advances the plant (except on the first call) and samples it.
func (s *Simulator) Next() (fc.SensorSnapshot, error) {
	if s.closed {
		return fc.SensorSnapshot{}, ErrClosed
	}
	if s.ticks > 0 {
		s.step()
	}
	snap := s.sample()
	s.ticks++
	return snap, nil
}

func (s *Simulator) Close() error {
	s.closed = true
	return nil
}

// Position returns the true world position.
func (s *Simulator) Position() fc.Vec3 { return s.pos }

// Velocity returns the true world velocity.
func (s *Simulator) Velocity() fc.Vec3 { return s.vel }

// Attitude returns the true roll, pitch and yaw.
func (s *Simulator) Attitude() fc.Vec3 { return s.att }

// Forces converts the latched PWM commands back into propeller forces.
func (s *Simulator) Forces() (f [4]float32) {
	v := &s.cfg.Vehicle
	for i, pwm := range s.motors {
		w := fc.SpeedFromPWM(v, pwm)
		if w < 0 {
			w = 0
		}
		f[i] = v.ThrustConstant * w * w
	}
	return f
}

func sinf(x float32) float32 { return float32(math.Sin(float64(x))) }
func cosf(x float32) float32 { return float32(math.Cos(float64(x))) }

func (s *Simulator) onGround() bool {
	return s.pos.Z <= 0
}

func (s *Simulator) step() {
	v := &s.cfg.Vehicle
	dt := v.DT
	thrust, torque := fc.AllocationTorques(v, s.Forces())

	accN := thrust / v.Mass
	sr, cr := sinf(s.att.X), cosf(s.att.X)
	sp, cp := sinf(s.att.Y), cosf(s.att.Y)
	sy, cy := sinf(s.att.Z), cosf(s.att.Z)

	// Horizontal thrust in the yaw-aligned frame, then rotated to world.
	bx := accN * sr * cp
	by := -accN * sp
	acc := fc.Vec3{
		X: cy*bx - sy*by,
		Y: sy*bx + cy*by,
		Z: accN*cr*cp - v.Gravity,
	}

	if s.onGround() && acc.Z <= 0 {
		// Resting on the ground: no motion, attitude forced level.
		s.pos.Z = 0
		s.vel = fc.Vec3{}
		s.rate = fc.Vec3{}
		s.att.X, s.att.Y = 0, 0
		s.time += dt
		return
	}

	angAcc := fc.Vec3{X: torque.X / v.InertiaXX, Y: torque.Y / v.InertiaYY, Z: torque.Z / v.InertiaZZ}
	s.rate = s.rate.Add(angAcc.Scale(dt))
	s.att = s.att.Add(s.rate.Scale(dt))

	s.vel = s.vel.Add(acc.Scale(dt))
	s.pos = s.pos.Add(s.vel.Scale(dt))
	if s.pos.Z < 0 {
		s.pos.Z = 0
		s.vel = fc.Vec3{}
	}
	s.time += dt
}

func (s *Simulator) noise(sigma float32) float32 {
	if sigma == 0 {
		return 0
	}
	return sigma * float32(s.rng.NormFloat64())
}

func (s *Simulator) sample() fc.SensorSnapshot {
	v := &s.cfg.Vehicle
	g := v.Gravity
	sr, cr := sinf(s.att.X), cosf(s.att.X)
	sp, cp := sinf(s.att.Y), cosf(s.att.Y)
	tilt := cr * cp

	snap := fc.SensorSnapshot{
		CurrentTime:    s.time,
		BatteryVoltage: fc.BatteryVoltage{Value: s.cfg.BatteryVoltage, Updated: true},
	}

	// Quasi-static accelerometer: gravity resolved in the body frame.
	snap.IMU = fc.IMUMeasurement{
		Accelerometer: fc.Vec3{
			X: -g*sp + s.noise(s.cfg.AccelNoise),
			Y: g*sr*cp + s.noise(s.cfg.AccelNoise),
			Z: g*tilt + s.noise(s.cfg.AccelNoise),
		},
		RateGyro: fc.Vec3{
			X: s.rate.X + s.cfg.GyroBias.X + s.noise(s.cfg.GyroNoise),
			Y: s.rate.Y + s.cfg.GyroBias.Y + s.noise(s.cfg.GyroNoise),
			Z: s.rate.Z + s.cfg.GyroBias.Z + s.noise(s.cfg.GyroNoise),
		},
		Updated: true,
	}
	snap.Extra.IMUTemperature = 25

	if s.ticks%s.rangeEvery == 0 {
		if tilt > 0 {
			s.lastRange = s.pos.Z / tilt
		}
		snap.Height = fc.HeightSensor{Value: s.lastRange, Updated: true}
	} else {
		snap.Height = fc.HeightSensor{Value: s.lastRange}
	}

	snap.OpticalFlow = fc.OpticalFlowSensor{ValueX: s.lastFlow.ValueX, ValueY: s.lastFlow.ValueY}
	if s.ticks%s.flowEvery == 0 {
		// Body-horizontal velocity.
		sy, cy := sinf(s.att.Z), cosf(s.att.Z)
		vbx := cy*s.vel.X + sy*s.vel.Y
		vby := -sy*s.vel.X + cy*s.vel.Y
		fx, fy := s.rate.X, -s.rate.Y
		if s.pos.Z > 0.01 {
			fx -= vbx * tilt / s.pos.Z
			fy -= vby * tilt / s.pos.Z
		}
		s.lastFlow = fc.OpticalFlowSensor{ValueX: fx, ValueY: fy, Updated: true}
		snap.OpticalFlow = s.lastFlow
	}
	return snap
}
