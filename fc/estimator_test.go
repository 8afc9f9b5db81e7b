package fc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttitudeLevelAccelHoldsZero(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	imu := IMUMeasurement{Accelerometer: Vec3{Z: cfg.Gravity}, Updated: true}

	for i := 0; i < 1000; i++ {
		EstimateAttitude(&cfg, st, &imu, Vec3{})
	}
	assert.Zero(t, st.Roll)
	assert.Zero(t, st.Pitch)
	assert.Zero(t, st.Yaw)
}

func TestAttitudeConvergesToAccelTilt(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	g := cfg.Gravity
	// Small tilt: roll 0.1 rad, pitch -0.05 rad in the gravity-in-body convention.
	imu := IMUMeasurement{Accelerometer: Vec3{X: 0.05 * g, Y: 0.1 * g, Z: g}, Updated: true}

	for i := 0; i < 3000; i++ {
		EstimateAttitude(&cfg, st, &imu, Vec3{})
	}
	assert.InDelta(t, 0.1, st.Roll, 1e-3)
	assert.InDelta(t, -0.05, st.Pitch, 1e-3)
}

func TestAttitudeStaleIMUHolds(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	st.Roll, st.Pitch, st.Yaw = 0.2, -0.1, 3.0
	imu := IMUMeasurement{Accelerometer: Vec3{Z: cfg.Gravity}}

	EstimateAttitude(&cfg, st, &imu, Vec3{X: 1, Y: 1, Z: 1})
	assert.Equal(t, float32(0.2), st.Roll)
	assert.Equal(t, float32(-0.1), st.Pitch)
	assert.Equal(t, float32(3.0), st.Yaw)
}

func TestYawIntegratesWithoutWrap(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	imu := IMUMeasurement{Accelerometer: Vec3{Z: cfg.Gravity}, Updated: true}

	// 2 rad/s for 4 s is 8 rad, past 2*pi.
	for i := 0; i < 4*TickRate; i++ {
		EstimateAttitude(&cfg, st, &imu, Vec3{Z: 2})
	}
	assert.InDelta(t, 8.0, st.Yaw, 1e-2)
	assert.Greater(t, st.Yaw, float32(2*math.Pi))
}

func levelSnapshot(cfg *Config, now, rng float32) SensorSnapshot {
	return SensorSnapshot{
		CurrentTime: now,
		IMU:         IMUMeasurement{Accelerometer: Vec3{Z: cfg.Gravity}, Updated: true},
		Height:      HeightSensor{Value: rng, Updated: true},
		OpticalFlow: OpticalFlowSensor{Updated: true},
	}
}

func TestHeightLocksOnConstantRange(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)

	// Level and constant range: vz stays 0, so h_n = r*(1-(1-mix)^n).
	keep := 1.0
	for i := 0; i < 2000; i++ {
		in := levelSnapshot(&cfg, float32(i)*cfg.DT, 0.8)
		EstimateHeightVelocity(&cfg, st, &in, Vec3{})
		if i < 10 {
			keep *= 1 - float64(cfg.MixHeight)
			assert.InDelta(t, 0.8*(1-keep), st.Height, 1e-5, "tick %d", i)
			assert.Zero(t, st.Velocity.Z, "tick %d", i)
		}
	}
	assert.InDelta(t, 0.8, st.Height, 1e-3)
	assert.InDelta(t, 0, st.Velocity.Z, 1e-3)
}

func TestHeightRangeTiltCompensated(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	st.Roll = 0.3

	for i := 0; i < 2000; i++ {
		in := levelSnapshot(&cfg, float32(i)*cfg.DT, 1.0)
		EstimateHeightVelocity(&cfg, st, &in, Vec3{})
	}
	assert.InDelta(t, math.Cos(0.3), st.Height, 1e-3)
}

func TestHeightRangeGates(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	tests := []struct {
		name string
		h    HeightSensor
	}{
		{"stale", HeightSensor{Value: 1.0}},
		{"at max range", HeightSensor{Value: cfg.MaxRange, Updated: true}},
		{"beyond max range", HeightSensor{Value: cfg.MaxRange + 2, Updated: true}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			st := NewEstimatorState(&cfg)
			st.Height = 0.4
			st.LastHeightMeas, st.LastHeightTime = 0.4, 1.0
			in := SensorSnapshot{CurrentTime: 1.5, Height: tc.h}
			EstimateHeightVelocity(&cfg, st, &in, Vec3{})
			assert.Equal(t, float32(0.4), st.Height)
			assert.Zero(t, st.Velocity.Z)
			assert.Equal(t, float32(1.0), st.LastHeightTime)
		})
	}
}

func TestHeightVelocityFromRangeDifference(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	st.Height = 1.0
	st.LastHeightMeas, st.LastHeightTime = 1.0, 1.0

	in := SensorSnapshot{CurrentTime: 1.1, Height: HeightSensor{Value: 1.1, Updated: true}}
	EstimateHeightVelocity(&cfg, st, &in, Vec3{})

	// vMeas = 0.1/0.1 = 1 m/s, blended with MixHeight.
	assert.InDelta(t, cfg.MixHeight*1.0, st.Velocity.Z, 1e-4)
	assert.InDelta(t, 1.0+cfg.MixHeight*0.1, st.Height, 1e-4)
	assert.Equal(t, float32(1.1), st.LastHeightTime)
}

func TestHeightVelocitySkipsZeroElapsed(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)

	in := SensorSnapshot{Height: HeightSensor{Value: 0.5, Updated: true}}
	EstimateHeightVelocity(&cfg, st, &in, Vec3{})
	assert.Zero(t, st.Velocity.Z)
	assert.False(t, math.IsNaN(float64(st.Height)))
}

func TestFlowVelocity(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.MixHorizVel = 1
	st := NewEstimatorState(&cfg)
	st.Height = 2

	in := SensorSnapshot{OpticalFlow: OpticalFlowSensor{ValueX: -0.5, ValueY: 0.25, Updated: true}}
	EstimateHeightVelocity(&cfg, st, &in, Vec3{})
	assert.InDelta(t, 1.0, st.Velocity.X, 1e-5)
	assert.InDelta(t, -0.5, st.Velocity.Y, 1e-5)

	// Pure rotation produces no translational velocity.
	in.OpticalFlow = OpticalFlowSensor{ValueX: 0.4, ValueY: -0.3, Updated: true}
	EstimateHeightVelocity(&cfg, st, &in, Vec3{X: 0.4, Y: 0.3})
	assert.InDelta(t, 0, st.Velocity.X, 1e-5)
	assert.InDelta(t, 0, st.Velocity.Y, 1e-5)
}

func TestFlowTiltGuardHoldsVelocity(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	st.Height = 1
	st.Roll = 1.2 // cos(1.2) ~ 0.36, below the guard
	st.Velocity = Vec3{X: 0.3, Y: -0.2}

	in := SensorSnapshot{OpticalFlow: OpticalFlowSensor{ValueX: 5, ValueY: 5, Updated: true}}
	EstimateHeightVelocity(&cfg, st, &in, Vec3{})
	assert.Equal(t, float32(0.3), st.Velocity.X)
	assert.Equal(t, float32(-0.2), st.Velocity.Y)
	require.False(t, math.IsInf(float64(st.Velocity.X), 0))
}
